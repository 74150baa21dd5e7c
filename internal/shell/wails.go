package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/uroflow/desktop/internal/window"
)

// SingleInstanceID identifies the app to the desktop; a second launch
// activates the running instance instead of starting another backend.
const SingleInstanceID = "com.uroflow.desktop"

// desktop is the subset of the wails runtime the shell drives.
type desktop interface {
	Show(ctx context.Context)
	Hide(ctx context.Context)
	SetTitle(ctx context.Context, title string)
	SetSize(ctx context.Context, width, height int)
	Reload(ctx context.Context)
	ExecJS(ctx context.Context, js string)
	Alert(ctx context.Context, title, message string) error
	Quit(ctx context.Context)
}

type wailsRuntime struct{}

func (wailsRuntime) Show(ctx context.Context)               { wruntime.WindowShow(ctx) }
func (wailsRuntime) Hide(ctx context.Context)               { wruntime.WindowHide(ctx) }
func (wailsRuntime) SetTitle(ctx context.Context, t string) { wruntime.WindowSetTitle(ctx, t) }
func (wailsRuntime) SetSize(ctx context.Context, w, h int)  { wruntime.WindowSetSize(ctx, w, h) }
func (wailsRuntime) Reload(ctx context.Context)             { wruntime.WindowReloadApp(ctx) }
func (wailsRuntime) ExecJS(ctx context.Context, js string)  { wruntime.WindowExecJS(ctx, js) }
func (wailsRuntime) Quit(ctx context.Context)               { wruntime.Quit(ctx) }
func (wailsRuntime) Alert(ctx context.Context, title, message string) error {
	_, err := wruntime.MessageDialog(ctx, wruntime.MessageDialogOptions{
		Type:    wruntime.ErrorDialog,
		Title:   title,
		Message: message,
	})
	return err
}

type errorBox struct {
	title, message string
	done           chan struct{}
}

// Wails hosts the application window in a native webview. The window is
// created by Main on the main goroutine once content has been loaded;
// closing it hides it and reports EventAllWindowsClosed so the app decides
// whether to quit.
type Wails struct {
	log    *slog.Logger
	stderr io.Writer

	// replaceable in tests
	run func(*options.App) error
	rt  desktop

	mu       sync.Mutex
	ctx      context.Context
	opts     window.Options
	content  http.Handler
	windows  int
	quitting bool

	ready     chan struct{}
	readyOnce sync.Once
	boxes     chan errorBox
	done      chan struct{}
	doneOnce  sync.Once
	quitOnce  sync.Once
	events    chan window.EventType
}

func NewWails(log *slog.Logger) *Wails {
	if log == nil {
		log = slog.Default()
	}
	return &Wails{
		log:    log.With("component", "shell"),
		stderr: os.Stderr,
		run:    wails.Run,
		rt:     wailsRuntime{},
		opts:   window.DefaultOptions(""),
		ready:  make(chan struct{}),
		boxes:  make(chan errorBox),
		done:   make(chan struct{}),
		events: make(chan window.EventType, 8),
	}
}

// Main runs the native event loop and must be called from the main
// goroutine. It returns after Quit or when the window host shuts down.
func (s *Wails) Main() error {
	for {
		select {
		case <-s.done:
			return nil
		case b := <-s.boxes:
			err := s.run(s.alertOptions(b))
			close(b.done)
			if err != nil {
				return err
			}
		case <-s.ready:
			err := s.run(s.appOptions())
			s.finish()
			return err
		}
	}
}

type wailsWindow struct {
	s *Wails
}

// NewWindow applies opts to the single native window. Before Main has
// started the window they become its creation options.
func (s *Wails) NewWindow(opts window.Options) (window.Window, error) {
	s.mu.Lock()
	s.opts = opts
	ctx := s.ctx
	s.mu.Unlock()
	if ctx != nil {
		s.rt.SetTitle(ctx, opts.Title)
		s.rt.SetSize(ctx, opts.Width, opts.Height)
	}
	return &wailsWindow{s: s}, nil
}

func (w *wailsWindow) LoadURL(raw string) error {
	h, err := RendererProxy(raw)
	if err != nil {
		return err
	}
	w.s.load(h, raw)
	return nil
}

func (w *wailsWindow) LoadFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	w.s.load(StaticHandler(filepath.Dir(path), filepath.Base(path)), path)
	return nil
}

func (s *Wails) load(h http.Handler, target string) {
	s.mu.Lock()
	s.content = h
	s.windows = 1
	ctx := s.ctx
	s.mu.Unlock()
	s.log.Info("window content", "target", target)
	if ctx == nil {
		s.readyOnce.Do(func() { close(s.ready) })
		return
	}
	s.rt.Reload(ctx)
	s.rt.Show(ctx)
}

// WindowCount is 1 while the window is shown and 0 once the user closed it.
func (s *Wails) WindowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows
}

// ShowErrorBox blocks until the user dismisses a native error dialog. With
// no window yet, Main hosts the dialog on its own. The message is always
// mirrored to stderr.
func (s *Wails) ShowErrorBox(title, message string) {
	s.log.Error(title, "detail", message)
	_, _ = fmt.Fprintf(s.stderr, "%s\n\n%s\n", title, message)

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx != nil {
		if err := s.rt.Alert(ctx, title, message); err != nil {
			s.log.Warn("error dialog failed", "error", err)
		}
		return
	}
	b := errorBox{title: title, message: message, done: make(chan struct{})}
	select {
	case s.boxes <- b:
	case <-s.done:
		return
	}
	select {
	case <-b.done:
	case <-s.done:
	}
}

// Quit closes the native window host. EventQuit follows once it is down.
func (s *Wails) Quit() {
	s.quitOnce.Do(func() {
		s.mu.Lock()
		s.quitting = true
		ctx := s.ctx
		s.mu.Unlock()
		if ctx != nil {
			s.rt.Quit(ctx)
			return
		}
		s.finish()
	})
}

func (s *Wails) Events() <-chan window.EventType { return s.events }

func (s *Wails) finish() {
	s.doneOnce.Do(func() {
		close(s.done)
		s.emit(window.EventQuit)
	})
}

func (s *Wails) emit(ev window.EventType) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("shell event dropped", "event", ev)
	}
}

func (s *Wails) appOptions() *options.App {
	s.mu.Lock()
	o := s.opts
	s.mu.Unlock()
	return &options.App{
		Title:                    o.Title,
		Width:                    o.Width,
		Height:                   o.Height,
		AssetServer:              &assetserver.Options{Handler: http.HandlerFunc(s.serveContent)},
		EnableDefaultContextMenu: !o.Isolated,
		Logger:                   wailsLogger{s.log},
		OnStartup:                s.onStartup,
		OnDomReady:               s.onDomReady,
		OnBeforeClose:            s.onBeforeClose,
		OnShutdown:               s.onShutdown,
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId:               SingleInstanceID,
			OnSecondInstanceLaunch: s.onSecondInstance,
		},
	}
}

// alertOptions hosts a lone error dialog behind a hidden window.
func (s *Wails) alertOptions(b errorBox) *options.App {
	return &options.App{
		Title:       b.title,
		Width:       480,
		Height:      200,
		StartHidden: true,
		AssetServer: &assetserver.Options{Handler: http.NotFoundHandler()},
		Logger:      wailsLogger{s.log},
		OnStartup: func(ctx context.Context) {
			go func() {
				if err := s.rt.Alert(ctx, b.title, b.message); err != nil {
					s.log.Warn("error dialog failed", "error", err)
				}
				s.rt.Quit(ctx)
			}()
		},
	}
}

func (s *Wails) serveContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.content
	s.mu.Unlock()
	if h == nil {
		http.Error(w, "no content", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}

func (s *Wails) onStartup(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
}

// onDomReady injects the bridge script into every loaded page.
func (s *Wails) onDomReady(ctx context.Context) {
	s.mu.Lock()
	bridge := s.opts.Bridge
	s.mu.Unlock()
	if bridge == "" {
		return
	}
	src, err := os.ReadFile(filepath.Clean(bridge))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("bridge script unreadable", "path", bridge, "error", err)
		}
		return
	}
	s.rt.ExecJS(ctx, string(src))
}

func (s *Wails) onBeforeClose(ctx context.Context) bool {
	s.mu.Lock()
	if s.quitting {
		s.mu.Unlock()
		return false
	}
	s.windows = 0
	s.mu.Unlock()
	s.rt.Hide(ctx)
	s.emit(window.EventAllWindowsClosed)
	return true
}

func (s *Wails) onShutdown(context.Context) { s.finish() }

func (s *Wails) onSecondInstance(data options.SecondInstanceData) {
	s.log.Info("second instance launched", "args", data.Args)
	s.mu.Lock()
	ctx, open := s.ctx, s.windows > 0
	s.mu.Unlock()
	if open && ctx != nil {
		s.rt.Show(ctx)
	}
	s.emit(window.EventActivate)
}

type wailsLogger struct{ log *slog.Logger }

func (l wailsLogger) Print(m string)   { l.log.Info(m) }
func (l wailsLogger) Trace(m string)   { l.log.Debug(m) }
func (l wailsLogger) Debug(m string)   { l.log.Debug(m) }
func (l wailsLogger) Info(m string)    { l.log.Info(m) }
func (l wailsLogger) Warning(m string) { l.log.Warn(m) }
func (l wailsLogger) Error(m string)   { l.log.Error(m) }
func (l wailsLogger) Fatal(m string)   { l.log.Error(m) }
