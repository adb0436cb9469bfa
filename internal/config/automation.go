package config

import (
	"fmt"
	"slices"
	"time"
)

// DurationRange is an inclusive [Min, Max] window.
type DurationRange struct {
	Min time.Duration `yaml:"min" env:"MIN"`
	Max time.Duration `yaml:"max" env:"MAX"`
}

// IntRange is an inclusive [Min, Max] window.
type IntRange struct {
	Min int `yaml:"min" env:"MIN"`
	Max int `yaml:"max" env:"MAX"`
}

// ThinkPause is the occasional extra delay between item actions.
type ThinkPause struct {
	Probability float64       `yaml:"probability" env:"PROBABILITY"`
	Min         time.Duration `yaml:"min" env:"MIN"`
	Max         time.Duration `yaml:"max" env:"MAX"`
}

// ReadinessConfig bounds the wait for items after an entity switch.
type ReadinessConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// AutomationConfig is everything the sequencing engine reads. A run works on a
// copy taken at start; changes go through Apply.
type AutomationConfig struct {
	Delay      DurationRange `yaml:"delay" envPrefix:"DELAY_"`
	ThinkPause ThinkPause    `yaml:"think_pause" envPrefix:"THINK_"`

	SaveRetryCount int           `yaml:"save_retry_count" env:"SAVE_RETRY_COUNT"`
	SaveRetryDelay time.Duration `yaml:"save_retry_delay" env:"SAVE_RETRY_DELAY"`

	SecondaryQuota IntRange `yaml:"secondary_quota" envPrefix:"QUOTA_"`

	AutoAdvanceEntities bool          `yaml:"auto_advance_entities" env:"AUTO_ADVANCE"`
	InterEntityDelay    time.Duration `yaml:"inter_entity_delay" env:"INTER_ENTITY_DELAY"`
	AutoSubmit          bool          `yaml:"auto_submit" env:"AUTO_SUBMIT"`

	// ContinueOnEntityError moves on to the next pending entity when one
	// fails unexpectedly instead of failing the run. Multi-entity mode only.
	ContinueOnEntityError bool `yaml:"continue_on_entity_error" env:"CONTINUE_ON_ENTITY_ERROR"`

	// TextPool is read from AUTOEVAL_AUTOMATION_TEXT_POOL as a |-separated list.
	TextPool []string `yaml:"text_pool" env:"TEXT_POOL" envSeparator:"|"`

	// Settle waits around actions whose effect shows up asynchronously.
	SaveSettle   time.Duration   `yaml:"save_settle"`
	SubmitDelay  time.Duration   `yaml:"submit_delay"`
	DialogSettle time.Duration   `yaml:"dialog_settle"`
	SwitchSettle DurationRange   `yaml:"switch_settle" envPrefix:"SWITCH_SETTLE_"`
	Readiness    ReadinessConfig `yaml:"readiness"`

	PausePollInterval time.Duration `yaml:"pause_poll_interval"`
}

// DefaultTextPool is the stock set of evaluation comments.
var DefaultTextPool = []string{
	"老师授课认真负责，课堂气氛活跃，能够很好地调动学生的学习积极性。教学内容充实，重点突出，讲解清晰，使我受益匪浅。",
	"老师教学方法灵活多样，善于引导学生思考，注重理论与实践相结合。课堂互动频繁，能够及时解答疑问，教学效果显著。",
	"老师讲课条理清晰，深入浅出，对知识点的讲解细致到位。关心学生的学习情况，课后也能耐心解答问题，是一位优秀的老师。",
	"老师备课充分，教学态度严谨，课堂组织有序。能够结合实际案例讲解理论知识，使抽象的概念变得生动易懂，收获很大。",
	"老师专业知识扎实，讲课富有激情，能够激发学生的学习兴趣。注重培养学生的独立思考能力，教学方式深受同学们欢迎。",
	"老师治学严谨，教学经验丰富，课堂内容充实且富有启发性。善于与学生沟通交流，营造了良好的学习氛围，教学质量优秀。",
	"老师授课内容丰富，重点难点讲解透彻，课堂节奏把握得当。对学生认真负责，及时反馈学习情况，帮助我们不断进步。",
	"老师讲课生动有趣，善于运用多种教学手段辅助教学。关注每位学生的学习状态，因材施教，是一位非常敬业的好老师。",
}

// DefaultAutomationConfig returns the stock pacing and behavior.
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		Delay: DurationRange{Min: 1500 * time.Millisecond, Max: 4000 * time.Millisecond},
		ThinkPause: ThinkPause{
			Probability: 0.15,
			Min:         500 * time.Millisecond,
			Max:         2000 * time.Millisecond,
		},
		SaveRetryCount:      2,
		SaveRetryDelay:      3 * time.Second,
		SecondaryQuota:      IntRange{Min: 2, Max: 3},
		AutoAdvanceEntities: false,
		InterEntityDelay:    3 * time.Second,
		AutoSubmit:          false,
		TextPool:            append([]string(nil), DefaultTextPool...),
		SaveSettle:          800 * time.Millisecond,
		SubmitDelay:         2 * time.Second,
		DialogSettle:        500 * time.Millisecond,
		SwitchSettle:        DurationRange{Min: 2 * time.Second, Max: 3 * time.Second},
		Readiness:           ReadinessConfig{PollInterval: 500 * time.Millisecond, MaxAttempts: 10},
		PausePollInterval:   100 * time.Millisecond,
	}
}

// Clone returns a deep copy.
func (c AutomationConfig) Clone() AutomationConfig {
	c.TextPool = append([]string(nil), c.TextPool...)
	return c
}

// Validate checks ranges and required values.
func (c AutomationConfig) Validate() error {
	if err := validRange("delay", c.Delay); err != nil {
		return err
	}
	if c.ThinkPause.Probability < 0 || c.ThinkPause.Probability > 1 {
		return fmt.Errorf("think_pause.probability must be within [0,1], got %v", c.ThinkPause.Probability)
	}
	if err := validRange("think_pause", DurationRange{Min: c.ThinkPause.Min, Max: c.ThinkPause.Max}); err != nil {
		return err
	}
	if c.SaveRetryCount < 1 {
		return fmt.Errorf("save_retry_count must be at least 1, got %d", c.SaveRetryCount)
	}
	if c.SaveRetryDelay < 0 {
		return fmt.Errorf("save_retry_delay must not be negative")
	}
	if c.SecondaryQuota.Min < 0 || c.SecondaryQuota.Min > c.SecondaryQuota.Max {
		return fmt.Errorf("secondary_quota must satisfy 0 <= min <= max, got [%d,%d]", c.SecondaryQuota.Min, c.SecondaryQuota.Max)
	}
	if len(c.TextPool) == 0 {
		return fmt.Errorf("text_pool must not be empty")
	}
	for i, s := range c.TextPool {
		if s == "" {
			return fmt.Errorf("text_pool[%d] is empty", i)
		}
	}
	if err := validRange("switch_settle", c.SwitchSettle); err != nil {
		return err
	}
	if c.Readiness.MaxAttempts < 1 {
		return fmt.Errorf("readiness.max_attempts must be at least 1")
	}
	if c.InterEntityDelay < 0 || c.SaveSettle < 0 || c.SubmitDelay < 0 || c.DialogSettle < 0 {
		return fmt.Errorf("settle delays must not be negative")
	}
	return nil
}

func validRange(name string, r DurationRange) error {
	if r.Min < 0 || r.Min > r.Max {
		return fmt.Errorf("%s must satisfy 0 <= min <= max, got [%v,%v]", name, r.Min, r.Max)
	}
	return nil
}

// AutomationPatch is a partial update. Nil fields are left unchanged.
type AutomationPatch struct {
	DelayMin            *time.Duration `yaml:"delay_min,omitempty"`
	DelayMax            *time.Duration `yaml:"delay_max,omitempty"`
	ThinkProbability    *float64       `yaml:"think_probability,omitempty"`
	ThinkMin            *time.Duration `yaml:"think_min,omitempty"`
	ThinkMax            *time.Duration `yaml:"think_max,omitempty"`
	SaveRetryCount      *int           `yaml:"save_retry_count,omitempty"`
	SaveRetryDelay      *time.Duration `yaml:"save_retry_delay,omitempty"`
	QuotaMin            *int           `yaml:"quota_min,omitempty"`
	QuotaMax            *int           `yaml:"quota_max,omitempty"`
	AutoAdvanceEntities *bool          `yaml:"auto_advance_entities,omitempty"`
	InterEntityDelay    *time.Duration `yaml:"inter_entity_delay,omitempty"`
	AutoSubmit          *bool          `yaml:"auto_submit,omitempty"`
	TextPool            []string       `yaml:"text_pool,omitempty"`

	ContinueOnEntityError *bool `yaml:"continue_on_entity_error,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AutomationPatch) Empty() bool {
	return p.DelayMin == nil && p.DelayMax == nil && p.ThinkProbability == nil &&
		p.ThinkMin == nil && p.ThinkMax == nil && p.SaveRetryCount == nil &&
		p.SaveRetryDelay == nil && p.QuotaMin == nil && p.QuotaMax == nil &&
		p.AutoAdvanceEntities == nil && p.InterEntityDelay == nil &&
		p.AutoSubmit == nil && p.TextPool == nil && p.ContinueOnEntityError == nil
}

// Apply returns a copy of c with the patch applied and validated. A minimum
// raised above its maximum drags the maximum up with it; a maximum lowered
// below its minimum is held at the minimum. Negative quota bounds clamp to 0.
func (c AutomationConfig) Apply(p AutomationPatch) (AutomationConfig, error) {
	out := c.Clone()

	if p.DelayMin != nil {
		out.Delay.Min = *p.DelayMin
		if out.Delay.Min > out.Delay.Max {
			out.Delay.Max = out.Delay.Min
		}
	}
	if p.DelayMax != nil {
		out.Delay.Max = max(*p.DelayMax, out.Delay.Min)
	}
	if p.ThinkProbability != nil {
		out.ThinkPause.Probability = *p.ThinkProbability
	}
	if p.ThinkMin != nil {
		out.ThinkPause.Min = *p.ThinkMin
		if out.ThinkPause.Min > out.ThinkPause.Max {
			out.ThinkPause.Max = out.ThinkPause.Min
		}
	}
	if p.ThinkMax != nil {
		out.ThinkPause.Max = max(*p.ThinkMax, out.ThinkPause.Min)
	}
	if p.SaveRetryCount != nil {
		out.SaveRetryCount = *p.SaveRetryCount
	}
	if p.SaveRetryDelay != nil {
		out.SaveRetryDelay = *p.SaveRetryDelay
	}
	if p.QuotaMin != nil {
		out.SecondaryQuota.Min = max(*p.QuotaMin, 0)
		if out.SecondaryQuota.Min > out.SecondaryQuota.Max {
			out.SecondaryQuota.Max = out.SecondaryQuota.Min
		}
	}
	if p.QuotaMax != nil {
		out.SecondaryQuota.Max = max(*p.QuotaMax, out.SecondaryQuota.Min)
	}
	if p.AutoAdvanceEntities != nil {
		out.AutoAdvanceEntities = *p.AutoAdvanceEntities
	}
	if p.InterEntityDelay != nil {
		out.InterEntityDelay = *p.InterEntityDelay
	}
	if p.AutoSubmit != nil {
		out.AutoSubmit = *p.AutoSubmit
	}
	if p.TextPool != nil {
		out.TextPool = append([]string(nil), p.TextPool...)
	}
	if p.ContinueOnEntityError != nil {
		out.ContinueOnEntityError = *p.ContinueOnEntityError
	}

	if err := out.Validate(); err != nil {
		return c, fmt.Errorf("invalid automation settings: %w", err)
	}
	return out, nil
}

// Diff returns the patch that turns c into other. Used by the config watcher
// to push only what changed on disk.
func (c AutomationConfig) Diff(other AutomationConfig) AutomationPatch {
	var p AutomationPatch
	if c.Delay.Min != other.Delay.Min {
		p.DelayMin = &other.Delay.Min
	}
	if c.Delay.Max != other.Delay.Max {
		p.DelayMax = &other.Delay.Max
	}
	if c.ThinkPause.Probability != other.ThinkPause.Probability {
		p.ThinkProbability = &other.ThinkPause.Probability
	}
	if c.ThinkPause.Min != other.ThinkPause.Min {
		p.ThinkMin = &other.ThinkPause.Min
	}
	if c.ThinkPause.Max != other.ThinkPause.Max {
		p.ThinkMax = &other.ThinkPause.Max
	}
	if c.SaveRetryCount != other.SaveRetryCount {
		p.SaveRetryCount = &other.SaveRetryCount
	}
	if c.SaveRetryDelay != other.SaveRetryDelay {
		p.SaveRetryDelay = &other.SaveRetryDelay
	}
	if c.SecondaryQuota.Min != other.SecondaryQuota.Min {
		p.QuotaMin = &other.SecondaryQuota.Min
	}
	if c.SecondaryQuota.Max != other.SecondaryQuota.Max {
		p.QuotaMax = &other.SecondaryQuota.Max
	}
	if c.AutoAdvanceEntities != other.AutoAdvanceEntities {
		p.AutoAdvanceEntities = &other.AutoAdvanceEntities
	}
	if c.InterEntityDelay != other.InterEntityDelay {
		p.InterEntityDelay = &other.InterEntityDelay
	}
	if c.AutoSubmit != other.AutoSubmit {
		p.AutoSubmit = &other.AutoSubmit
	}
	if c.ContinueOnEntityError != other.ContinueOnEntityError {
		p.ContinueOnEntityError = &other.ContinueOnEntityError
	}
	if !slices.Equal(c.TextPool, other.TextPool) {
		p.TextPool = append([]string(nil), other.TextPool...)
	}
	return p
}
