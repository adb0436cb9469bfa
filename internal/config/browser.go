package config

import (
	"fmt"
	"time"
)

// BrowserConfig configures the Chrome session driven through rod.
type BrowserConfig struct {
	// DebuggerURL attaches to an already running Chrome instead of launching one.
	DebuggerURL string `yaml:"debugger_url" env:"DEBUGGER_URL"`
	// ControlURLFile records the control URL of a browser started by `browser launch`.
	ControlURLFile string `yaml:"control_url_file" env:"CONTROL_URL_FILE"`
	Bin            string `yaml:"bin" env:"BIN"`
	UserDataDir    string `yaml:"user_data_dir" env:"USER_DATA_DIR"`
	Headless       bool   `yaml:"headless" env:"HEADLESS"`
	// TargetURL is opened (or matched against open tabs) when no URL is given.
	TargetURL     string        `yaml:"target_url" env:"TARGET_URL"`
	ActionTimeout time.Duration `yaml:"action_timeout" env:"ACTION_TIMEOUT"`

	Pointer PointerConfig `yaml:"pointer" envPrefix:"POINTER_"`
}

// PointerConfig shapes the hover/press sequence of a humanized click.
type PointerConfig struct {
	Hover   DurationRange `yaml:"hover" envPrefix:"HOVER_"`     // pointer resting on the target
	Press   DurationRange `yaml:"press" envPrefix:"PRESS_"`     // button held down
	Release DurationRange `yaml:"release" envPrefix:"RELEASE_"` // after release, before moving on
}

// DefaultBrowserConfig returns a visible, launched browser.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		ControlURLFile: ".autoeval/browser.url",
		UserDataDir:    ".autoeval/chrome",
		ActionTimeout:  10 * time.Second,
		Pointer: PointerConfig{
			Hover:   DurationRange{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
			Press:   DurationRange{Min: 30 * time.Millisecond, Max: 100 * time.Millisecond},
			Release: DurationRange{Min: 30 * time.Millisecond, Max: 80 * time.Millisecond},
		},
	}
}

// SelectorsConfig locates the form on the page. Everything is CSS.
type SelectorsConfig struct {
	// Entity grid
	EntityRows       string `yaml:"entity_rows"`
	EntityStatusCell string `yaml:"entity_status_cell"`
	PendingStatus    string `yaml:"pending_status"`
	EntityNameCell   string `yaml:"entity_name_cell"`
	EntityCourseCell string `yaml:"entity_course_cell"`

	// Items of the active entity
	ItemRows        string `yaml:"item_rows"`
	ItemTitle       string `yaml:"item_title"`
	PrimaryOption   string `yaml:"primary_option"`
	SecondaryOption string `yaml:"secondary_option"`

	// Page controls; CommentBox may list fallbacks separated by commas.
	CommentBox   string `yaml:"comment_box"`
	SaveButton   string `yaml:"save_button"`
	SubmitButton string `yaml:"submit_button"`
	DialogButton string `yaml:"dialog_button"`
}

// DefaultSelectors matches the student evaluation page.
func DefaultSelectors() SelectorsConfig {
	return SelectorsConfig{
		EntityRows:       "#tempGrid tbody tr.jqgrow",
		EntityStatusCell: `td[aria-describedby="tempGrid_tjztmc"]`,
		PendingStatus:    "未评",
		EntityNameCell:   `td[aria-describedby="tempGrid_jzgmc"]`,
		EntityCourseCell: `td[aria-describedby="tempGrid_kcmc"]`,
		ItemRows:         "tr.tr-xspj",
		ItemTitle:        "td",
		PrimaryOption:    `input.radio-pjf[data-sfzd="1"]`,
		SecondaryOption:  `input.radio-pjf[data-sfzd="0"]`,
		CommentBox:       `#pyDiv textarea, textarea[name="py"]`,
		SaveButton:       "#btn_xspj_bc",
		SubmitButton:     "#btn_xspj_tj",
		DialogButton:     "#btn_ok",
	}
}

// Validate requires every selector the front-end dispatches against.
func (s SelectorsConfig) Validate() error {
	required := map[string]string{
		"entity_rows":      s.EntityRows,
		"item_rows":        s.ItemRows,
		"primary_option":   s.PrimaryOption,
		"secondary_option": s.SecondaryOption,
		"comment_box":      s.CommentBox,
		"save_button":      s.SaveButton,
		"submit_button":    s.SubmitButton,
		"dialog_button":    s.DialogButton,
	}
	for name, v := range required {
		if v == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}
