// Package browser drives the evaluation page through Chrome DevTools with
// go-rod: Manager owns the Chrome connection, Frontend implements the form
// contract on one page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"autoeval/internal/config"
	"autoeval/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Manager owns the Chrome instance, either attached or launched.
type Manager struct {
	cfg config.BrowserConfig

	mu         sync.RWMutex
	browser    *rod.Browser
	launcher   *launcher.Launcher // set only when this manager launched Chrome
	controlURL string
	cancel     context.CancelFunc
}

// NewManager creates an unconnected manager.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Start connects to Chrome. It tries, in order, the configured debugger URL,
// the control URL recorded by `browser launch`, and finally launches a new
// instance.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		m.disconnectLocked()
	}

	candidates := []string{m.cfg.DebuggerURL}
	if recorded, err := ReadControlURL(m.cfg.ControlURLFile); err == nil {
		candidates = append(candidates, recorded)
	}
	for _, u := range candidates {
		if u == "" {
			continue
		}
		if err := m.connectLocked(ctx, u); err != nil {
			logging.BrowserWarn("attach to %s failed: %v", u, err)
			continue
		}
		logging.Browser("attached to running Chrome at %s", u)
		return nil
	}

	l := m.newLauncher()
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	if err := m.connectLocked(ctx, u); err != nil {
		l.Kill()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	m.launcher = l
	logging.Browser("launched Chrome (headless=%v) at %s", m.cfg.Headless, u)
	return nil
}

func (m *Manager) newLauncher() *launcher.Launcher {
	l := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	return l
}

// connectLocked binds the manager to a control URL. The connection lives
// until Shutdown, independent of ctx. Caller must hold lock.
func (m *Manager) connectLocked(ctx context.Context, controlURL string) error {
	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := rod.New().ControlURL(controlURL).Context(bctx)
	if err := b.Connect(); err != nil {
		cancel()
		return err
	}
	m.browser = b
	m.controlURL = controlURL
	m.cancel = cancel
	return nil
}

// disconnectLocked drops the connection; a launched Chrome is closed, an
// attached one is left running. Caller must hold lock.
func (m *Manager) disconnectLocked() error {
	var err error
	if m.launcher != nil && m.browser != nil {
		err = m.browser.Close()
		m.launcher.Kill()
		m.launcher.Cleanup()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.browser = nil
	m.launcher = nil
	m.cancel = nil
	m.controlURL = ""
	return err
}

// ControlURL returns the WebSocket debugger URL.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown disconnects, closing Chrome only if this manager launched it.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil
	}
	err := m.disconnectLocked()
	logging.Browser("browser connection closed")
	return err
}

// OpenPage returns the tab showing url, opening one if none does. An empty
// url falls back to the configured target, then to the first regular tab.
func (m *Manager) OpenPage(ctx context.Context, url string) (*rod.Page, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	if url == "" {
		url = m.cfg.TargetURL
	}

	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil || isInternalURL(info.URL) {
			continue
		}
		if url == "" || strings.HasPrefix(info.URL, url) {
			logging.Browser("using open tab %q (%s)", info.Title, info.URL)
			if _, err := p.Activate(); err != nil {
				logging.BrowserWarn("activate tab: %v", err)
			}
			return p.Context(ctx), nil
		}
	}
	if url == "" {
		return nil, errors.New("no open tab and no target url configured")
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := page.Timeout(m.cfg.ActionTimeout * 3).WaitLoad(); err != nil {
		logging.BrowserWarn("page %s did not finish loading: %v", url, err)
	}
	logging.Browser("opened %s", url)
	return page, nil
}

func (m *Manager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// LaunchDetached starts a Chrome that outlives this process and records its
// control URL so later runs can attach to it (and to the login it holds).
func LaunchDetached(cfg config.BrowserConfig) (string, error) {
	l := launcher.New().Leakless(false).Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	if err := WriteControlURL(cfg.ControlURLFile, u); err != nil {
		return u, err
	}
	logging.Browser("launched detached Chrome at %s", u)
	return u, nil
}

// WriteControlURL records a control URL for later attachment.
func WriteControlURL(path, controlURL string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(controlURL+"\n"), 0o644)
}

// ReadControlURL loads a control URL written by WriteControlURL.
func ReadControlURL(path string) (string, error) {
	if path == "" {
		return "", os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	u := strings.TrimSpace(string(data))
	if u == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return u, nil
}

func isInternalURL(url string) bool {
	internalPrefixes := []string{
		"chrome://",
		"chrome-extension://",
		"devtools://",
		"about:",
		"data:",
		"blob:",
	}
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}
