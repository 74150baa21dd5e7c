package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/uroflow/desktop/internal/window"
)

// Browser is the headless Host: windows are tabs in the user's default
// browser and the error box is zenity or osascript when installed. Tabs
// cannot be observed, so it never reports closed windows or reactivation.
type Browser struct {
	log    *slog.Logger
	goos   string
	stderr io.Writer

	// replaceable in tests
	open   func(url string) error
	dialog func(title, message string) error

	mu      sync.Mutex
	windows int
	servers []*http.Server

	events   chan window.EventType
	done     chan struct{}
	quitOnce sync.Once
}

func NewBrowser(log *slog.Logger) *Browser {
	if log == nil {
		log = slog.Default()
	}
	b := &Browser{
		log:    log.With("component", "shell"),
		goos:   runtime.GOOS,
		stderr: os.Stderr,
		events: make(chan window.EventType, 4),
		done:   make(chan struct{}),
	}
	b.open = b.openExternal
	b.dialog = b.nativeDialog
	return b
}

type browserWindow struct {
	b *Browser
}

func (b *Browser) NewWindow(opts window.Options) (window.Window, error) {
	b.log.Debug("window options not applicable to browser tabs", "title", opts.Title, "width", opts.Width, "height", opts.Height)
	return &browserWindow{b: b}, nil
}

func (w *browserWindow) LoadURL(url string) error {
	if err := w.b.open(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	w.b.opened()
	return nil
}

// LoadFile serves the file's directory on an ephemeral loopback port and
// opens the file through it.
func (w *browserWindow) LoadFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	url, err := w.b.serve(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}
	return w.LoadURL(url)
}

func (b *Browser) opened() {
	b.mu.Lock()
	b.windows++
	b.mu.Unlock()
}

// WindowCount reports windows opened so far. Browser tabs cannot be
// observed closing, so the count never decreases.
func (b *Browser) WindowCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windows
}

func (b *Browser) serve(dir, entry string) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	srv := &http.Server{
		Handler:           StaticHandler(dir, entry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	b.mu.Lock()
	b.servers = append(b.servers, srv)
	b.mu.Unlock()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("static server stopped", "error", err)
		}
	}()
	url := "http://" + ln.Addr().String() + "/"
	if entry != "index.html" {
		url += entry
	}
	b.log.Info("serving bundled frontend", "dir", dir, "url", url)
	return url, nil
}

// ShowErrorBox shows a blocking native alert when the platform has one and
// always mirrors the message to stderr.
func (b *Browser) ShowErrorBox(title, message string) {
	b.log.Error(title, "detail", message)
	_, _ = fmt.Fprintf(b.stderr, "%s\n\n%s\n", title, message)
	if err := b.dialog(title, message); err != nil {
		b.log.Debug("native dialog unavailable", "error", err)
	}
}

// Quit shuts down static servers and emits EventQuit once.
func (b *Browser) Quit() {
	b.quitOnce.Do(func() {
		b.mu.Lock()
		servers := b.servers
		b.servers = nil
		b.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(ctx)
		}
		close(b.done)
		b.events <- window.EventQuit
	})
}

func (b *Browser) Events() <-chan window.EventType { return b.events }

// Main blocks until Quit.
func (b *Browser) Main() error {
	<-b.done
	return nil
}

func (b *Browser) openExternal(url string) error {
	name, args := openCommand(b.goos, url)
	// #nosec G204 -- fixed opener, url is a single argument
	return exec.Command(name, args...).Start()
}

func (b *Browser) nativeDialog(title, message string) error {
	name, args := dialogCommand(b.goos, title, message)
	if name == "" {
		return errors.New("no native dialog on " + b.goos)
	}
	if _, err := exec.LookPath(name); err != nil {
		return err
	}
	// #nosec G204
	return exec.Command(name, args...).Run()
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

func dialogCommand(goos, title, message string) (string, []string) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf("display alert %q message %q as critical", title, message)
		return "osascript", []string{"-e", script}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "zenity", []string{"--error", "--title=" + title, "--text=" + message}
	default:
		return "", nil
	}
}
