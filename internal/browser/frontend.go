package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autoeval/internal/config"
	"autoeval/internal/form"
	"autoeval/internal/logging"
	"autoeval/internal/pacing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// setValueJS writes a textarea the way a user edit would be observed by the
// page's own listeners.
const setValueJS = `function (v) {
	this.focus();
	this.value = v;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	this.blur();
}`

// clickJS is the fallback for controls the pointer cannot reach (hidden
// radios behind styled labels).
const clickJS = `function () { this.click(); }`

// Frontend implements form.Frontend on a rod page using CSS selectors.
type Frontend struct {
	page    *rod.Page
	sel     config.SelectorsConfig
	pointer config.PointerConfig
	timeout time.Duration
	rng     pacing.Source
}

var _ form.Frontend = (*Frontend)(nil)

// NewFrontend binds a page. rng shapes the pointer jitter.
func NewFrontend(page *rod.Page, bcfg config.BrowserConfig, sel config.SelectorsConfig, rng pacing.Source) *Frontend {
	if rng == nil {
		rng = pacing.NewSource(0)
	}
	timeout := bcfg.ActionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Frontend{page: page, sel: sel, pointer: bcfg.Pointer, timeout: timeout, rng: rng}
}

// scoped returns the page bound to ctx with the per-call timeout.
func (f *Frontend) scoped(ctx context.Context) (*rod.Page, func()) {
	p := f.page.Context(ctx).Timeout(f.timeout)
	return p, func() { p.CancelTimeout() }
}

// DiscoverItems reads every item row of the active entity in page order.
func (f *Frontend) DiscoverItems(ctx context.Context) ([]form.Item, error) {
	p, done := f.scoped(ctx)
	defer done()

	rows, err := p.Elements(f.sel.ItemRows)
	if err != nil {
		return nil, fmt.Errorf("query item rows: %w", err)
	}
	items := make([]form.Item, 0, len(rows))
	for i, row := range rows {
		item := form.Item{ID: fmt.Sprintf("item-%d", i+1), Index: i}
		if has, el, err := row.Has(f.sel.ItemTitle); err == nil && has {
			if text, err := el.Text(); err == nil {
				item.Title = strings.TrimSpace(text)
			}
		}
		item.Selected = f.selection(row)
		items = append(items, item)
	}
	logging.BrowserDebug("discovered %d items", len(items))
	return items, nil
}

func (f *Frontend) selection(row *rod.Element) form.Selection {
	switch {
	case checked(row, f.sel.PrimaryOption):
		return form.PrimarySelected
	case checked(row, f.sel.SecondaryOption):
		return form.SecondarySelected
	default:
		return form.Unselected
	}
}

func checked(row *rod.Element, selector string) bool {
	has, el, err := row.Has(selector)
	if err != nil || !has {
		return false
	}
	v, err := el.Property("checked")
	if err != nil {
		return false
	}
	return v.Bool()
}

// DiscoverUnprocessedEntities lists grid rows whose status cell shows the
// pending status.
func (f *Frontend) DiscoverUnprocessedEntities(ctx context.Context) ([]form.EntityHandle, error) {
	p, done := f.scoped(ctx)
	defer done()

	rows, err := p.Elements(f.sel.EntityRows)
	if err != nil {
		return nil, fmt.Errorf("query entity rows: %w", err)
	}
	var pending []form.EntityHandle
	for i, row := range rows {
		if cellText(row, f.sel.EntityStatusCell) != f.sel.PendingStatus {
			continue
		}
		pending = append(pending, form.EntityHandle{
			Ref:   rowRef(row, i),
			Label: entityLabel(cellText(row, f.sel.EntityNameCell), cellText(row, f.sel.EntityCourseCell)),
		})
	}
	logging.BrowserDebug("%d of %d entities pending", len(pending), len(rows))
	return pending, nil
}

func cellText(row *rod.Element, selector string) string {
	if selector == "" {
		return ""
	}
	has, el, err := row.Has(selector)
	if err != nil || !has {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// rowRef prefers the row's DOM id; grids without ids fall back to position.
func rowRef(row *rod.Element, i int) string {
	if id, err := row.Attribute("id"); err == nil && id != nil && *id != "" {
		return "id:" + *id
	}
	return fmt.Sprintf("row:%d", i)
}

func entityLabel(name, course string) string {
	if name == "" {
		name = "unknown"
	}
	if course == "" {
		course = "unknown course"
	}
	return name + " - " + course
}

// IsDialogPresent counts the dialog button only while it is visible.
func (f *Frontend) IsDialogPresent(ctx context.Context) (bool, error) {
	p, done := f.scoped(ctx)
	defer done()

	has, el, err := p.Has(f.sel.DialogButton)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	return el.Visible()
}

// Dispatch performs one logical action. Controls that cannot be found yield
// an error wrapping form.ErrActionMissing.
func (f *Frontend) Dispatch(ctx context.Context, a form.Action) error {
	p, done := f.scoped(ctx)
	defer done()

	logging.BrowserDebug("dispatch %s", a)
	switch a.Kind {
	case form.ActionSelectOption:
		return f.selectOption(ctx, p, a)
	case form.ActionSubmitText:
		return f.submitText(p, a.Text)
	case form.ActionSave:
		return f.clickControl(ctx, p, a.Kind, f.sel.SaveButton)
	case form.ActionConfirm:
		return f.clickControl(ctx, p, a.Kind, f.sel.SubmitButton)
	case form.ActionDismissDialog:
		return f.clickControl(ctx, p, a.Kind, f.sel.DialogButton)
	case form.ActionSwitchEntity:
		return f.switchEntity(ctx, p, a.Entity)
	default:
		return fmt.Errorf("unsupported action %q", a.Kind)
	}
}

func (f *Frontend) selectOption(ctx context.Context, p *rod.Page, a form.Action) error {
	rows, err := p.Elements(f.sel.ItemRows)
	if err != nil {
		return fmt.Errorf("query item rows: %w", err)
	}
	if a.Item.Index < 0 || a.Item.Index >= len(rows) {
		return form.MissingError(a.Kind, a.Item.ID)
	}
	selector := f.sel.PrimaryOption
	if form.Label(a.Option) == form.Secondary {
		selector = f.sel.SecondaryOption
	}
	has, el, err := rows[a.Item.Index].Has(selector)
	if err != nil {
		return fmt.Errorf("query option of %s: %w", a.Item.ID, err)
	}
	if !has {
		return form.MissingError(a.Kind, fmt.Sprintf("%s option %s", a.Item.ID, selector))
	}
	return f.click(ctx, p, el)
}

func (f *Frontend) submitText(p *rod.Page, text string) error {
	for _, selector := range splitSelectors(f.sel.CommentBox) {
		has, el, err := p.Has(selector)
		if err != nil {
			return fmt.Errorf("query comment box: %w", err)
		}
		if !has {
			continue
		}
		if _, err := el.Eval(setValueJS, text); err != nil {
			return fmt.Errorf("fill comment box: %w", err)
		}
		return nil
	}
	return form.MissingError(form.ActionSubmitText, f.sel.CommentBox)
}

func (f *Frontend) clickControl(ctx context.Context, p *rod.Page, kind form.ActionKind, selector string) error {
	has, el, err := p.Has(selector)
	if err != nil {
		return fmt.Errorf("query %s: %w", selector, err)
	}
	if !has {
		return form.MissingError(kind, selector)
	}
	return f.click(ctx, p, el)
}

func (f *Frontend) switchEntity(ctx context.Context, p *rod.Page, h form.EntityHandle) error {
	rows, err := p.Elements(f.sel.EntityRows)
	if err != nil {
		return fmt.Errorf("query entity rows: %w", err)
	}
	for i, row := range rows {
		if rowRef(row, i) == h.Ref {
			return f.click(ctx, p, row)
		}
	}
	return form.MissingError(form.ActionSwitchEntity, h.String())
}

// click moves the pointer onto el, rests, presses and releases with jittered
// pauses. Elements the pointer cannot reach are clicked from script instead,
// as long as no button press was sent yet.
func (f *Frontend) click(ctx context.Context, p *rod.Page, el *rod.Element) error {
	pressed, err := f.pointerClick(ctx, p, el)
	if err == nil {
		return nil
	}
	if pressed || ctx.Err() != nil {
		return fmt.Errorf("click: %w", err)
	}
	logging.BrowserDebug("pointer click failed (%v), clicking from script", err)
	if _, err := el.Eval(clickJS); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (f *Frontend) pointerClick(ctx context.Context, p *rod.Page, el *rod.Element) (bool, error) {
	if err := el.ScrollIntoView(); err != nil {
		return false, err
	}
	if err := el.Hover(); err != nil {
		return false, err
	}
	if err := f.jitter(ctx, f.pointer.Hover); err != nil {
		return false, err
	}
	if err := p.Mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return false, err
	}
	if err := f.jitter(ctx, f.pointer.Press); err != nil {
		return true, err
	}
	if err := p.Mouse.Up(proto.InputMouseButtonLeft, 1); err != nil {
		return true, err
	}
	return true, f.jitter(ctx, f.pointer.Release)
}

func (f *Frontend) jitter(ctx context.Context, r config.DurationRange) error {
	d := pacing.Uniform(f.rng, r.Min, r.Max)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// splitSelectors turns "a, b" into fallbacks tried in order.
func splitSelectors(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
