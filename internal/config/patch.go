package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// patchKeys maps `key=value` names (the patch's yaml names) to setters.
var patchKeys = map[string]func(p *AutomationPatch, v string) error{
	"delay_min":             durationField(func(p *AutomationPatch, d *time.Duration) { p.DelayMin = d }),
	"delay_max":             durationField(func(p *AutomationPatch, d *time.Duration) { p.DelayMax = d }),
	"think_min":             durationField(func(p *AutomationPatch, d *time.Duration) { p.ThinkMin = d }),
	"think_max":             durationField(func(p *AutomationPatch, d *time.Duration) { p.ThinkMax = d }),
	"save_retry_delay":      durationField(func(p *AutomationPatch, d *time.Duration) { p.SaveRetryDelay = d }),
	"inter_entity_delay":    durationField(func(p *AutomationPatch, d *time.Duration) { p.InterEntityDelay = d }),
	"save_retry_count":      intField(func(p *AutomationPatch, n *int) { p.SaveRetryCount = n }),
	"quota_min":             intField(func(p *AutomationPatch, n *int) { p.QuotaMin = n }),
	"quota_max":             intField(func(p *AutomationPatch, n *int) { p.QuotaMax = n }),
	"auto_advance_entities": boolField(func(p *AutomationPatch, b *bool) { p.AutoAdvanceEntities = b }),
	"auto_submit":           boolField(func(p *AutomationPatch, b *bool) { p.AutoSubmit = b }),
	"continue_on_entity_error": boolField(func(p *AutomationPatch, b *bool) {
		p.ContinueOnEntityError = b
	}),
	"think_probability": func(p *AutomationPatch, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		p.ThinkProbability = &f
		return nil
	},
	"text_pool": func(p *AutomationPatch, v string) error {
		var pool []string
		for _, s := range strings.Split(v, "|") {
			if s = strings.TrimSpace(s); s != "" {
				pool = append(pool, s)
			}
		}
		p.TextPool = pool
		return nil
	},
}

// PatchKeys lists the names ParseAssignment accepts.
func PatchKeys() []string {
	keys := make([]string, 0, len(patchKeys))
	for k := range patchKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseAssignment adds one `key=value` setting to p. Durations use Go
// syntax ("2s", "1500ms"); text_pool entries are separated by "|".
func ParseAssignment(p *AutomationPatch, assignment string) error {
	key, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", assignment)
	}
	key = strings.TrimSpace(key)
	set, ok := patchKeys[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(PatchKeys(), ", "))
	}
	if err := set(p, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func durationField(assign func(*AutomationPatch, *time.Duration)) func(*AutomationPatch, string) error {
	return func(p *AutomationPatch, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		assign(p, &d)
		return nil
	}
}

func intField(assign func(*AutomationPatch, *int)) func(*AutomationPatch, string) error {
	return func(p *AutomationPatch, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		assign(p, &n)
		return nil
	}
}

func boolField(assign func(*AutomationPatch, *bool)) func(*AutomationPatch, string) error {
	return func(p *AutomationPatch, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		assign(p, &b)
		return nil
	}
}
