package form

import "fmt"

// ActionKind enumerates the logical actions the engine can request.
type ActionKind string

const (
	ActionSelectOption  ActionKind = "select_option"
	ActionSubmitText    ActionKind = "submit_text"
	ActionSave          ActionKind = "save"
	ActionConfirm       ActionKind = "confirm"
	ActionSwitchEntity  ActionKind = "switch_entity"
	ActionDismissDialog ActionKind = "dismiss_dialog"
)

// Action is one request to the dispatcher. Only the fields relevant to Kind
// are set.
type Action struct {
	Kind   ActionKind
	Item   Item
	Option int
	Text   string
	Entity EntityHandle
}

func SelectOption(item Item, label Label) Action {
	return Action{Kind: ActionSelectOption, Item: item, Option: label.OptionIndex()}
}

func SubmitText(text string) Action {
	return Action{Kind: ActionSubmitText, Text: text}
}

func Save() Action { return Action{Kind: ActionSave} }

func Confirm() Action { return Action{Kind: ActionConfirm} }

func SwitchEntity(h EntityHandle) Action {
	return Action{Kind: ActionSwitchEntity, Entity: h}
}

func DismissDialog() Action { return Action{Kind: ActionDismissDialog} }

// Target is a short description of what the action touches, for logs.
func (a Action) Target() string {
	switch a.Kind {
	case ActionSelectOption:
		return fmt.Sprintf("%s#%d", a.Item.ID, a.Option)
	case ActionSwitchEntity:
		return a.Entity.String()
	case ActionSubmitText:
		return truncate(a.Text, 30)
	default:
		return ""
	}
}

func (a Action) String() string {
	if t := a.Target(); t != "" {
		return fmt.Sprintf("%s(%s)", a.Kind, t)
	}
	return string(a.Kind)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
