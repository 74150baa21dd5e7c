package window

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
)

// Defaults for the single application window.
const (
	DefaultWidth  = 1200
	DefaultHeight = 840
	DefaultTitle  = "UroFlow"
)

// Options describe a top-level window. Isolated content gets no host
// capabilities except through the declared Bridge script.
type Options struct {
	Width    int
	Height   int
	Title    string
	Isolated bool
	Bridge   string
}

func DefaultOptions(bridge string) Options {
	return Options{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Title:    DefaultTitle,
		Isolated: true,
		Bridge:   bridge,
	}
}

// Window is a created top-level window.
type Window interface {
	LoadURL(url string) error
	LoadFile(path string) error
}

// EventType enumerates host shell notifications.
type EventType int

const (
	EventActivate EventType = iota + 1
	EventAllWindowsClosed
	EventQuit
)

func (e EventType) String() string {
	switch e {
	case EventActivate:
		return "activate"
	case EventAllWindowsClosed:
		return "window-all-closed"
	case EventQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Shell is the host platform integration: windows, dialogs and the app lifecycle.
type Shell interface {
	NewWindow(Options) (Window, error)
	WindowCount() int
	// ShowErrorBox blocks until the user dismisses the message.
	ShowErrorBox(title, message string)
	Quit()
	Events() <-chan EventType
}

// Target is what a window loads: a URL or a bundled file, never both.
type Target struct {
	URL  string
	File string
}

func (t Target) String() string {
	if t.URL != "" {
		return t.URL
	}
	return t.File
}

// Controller creates the application window with a fixed load rule.
type Controller struct {
	shell   Shell
	opts    Options
	target  Target
	log     *slog.Logger
	mu      sync.Mutex
	created int
}

// NewController loads rendererURL verbatim when set, else dist/index.html
// under frontendDir.
func NewController(shell Shell, opts Options, rendererURL, frontendDir string, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	t := Target{URL: rendererURL}
	if rendererURL == "" {
		t = Target{File: EntryFile(frontendDir)}
	}
	return &Controller{shell: shell, opts: opts, target: t, log: log.With("component", "window")}
}

// EntryFile is the bundled static entry point under frontendDir.
func EntryFile(frontendDir string) string {
	return filepath.Join(frontendDir, "dist", "index.html")
}

func (c *Controller) Target() Target { return c.target }

// Create opens a new window and loads the target.
func (c *Controller) Create() (Window, error) {
	if c.shell == nil {
		return nil, errors.New("window: no shell")
	}
	w, err := c.shell.NewWindow(c.opts)
	if err != nil {
		return nil, err
	}
	if c.target.URL != "" {
		err = w.LoadURL(c.target.URL)
	} else {
		err = w.LoadFile(c.target.File)
	}
	if err != nil {
		c.log.Error("window load failed", "target", c.target.String(), "error", err)
		return w, err
	}
	c.mu.Lock()
	c.created++
	c.mu.Unlock()
	c.log.Info("window created", "title", c.opts.Title, "target", c.target.String())
	return w, nil
}

// Activate handles the host's reactivation signal: a window is created
// only when none is open.
func (c *Controller) Activate() (bool, error) {
	if c.shell == nil {
		return false, errors.New("window: no shell")
	}
	if c.shell.WindowCount() > 0 {
		return false, nil
	}
	_, err := c.Create()
	return err == nil, err
}

// Created returns how many windows this controller has opened.
func (c *Controller) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// QuitOnAllClosed reports whether closing the last window should quit the
// app on goos. macOS apps conventionally stay alive without windows.
func QuitOnAllClosed(goos string) bool { return goos != "darwin" }
