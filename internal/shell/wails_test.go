package shell

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wailsapp/wails/v2/pkg/options"

	"github.com/uroflow/desktop/internal/window"
)

type fakeDesktop struct {
	mu      sync.Mutex
	calls   []string
	scripts []string
	alerts  []string
	quit    chan struct{}
}

func newFakeDesktop() *fakeDesktop { return &fakeDesktop{quit: make(chan struct{}, 4)} }

func (d *fakeDesktop) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDesktop) Show(context.Context)                 { d.record("show") }
func (d *fakeDesktop) Hide(context.Context)                 { d.record("hide") }
func (d *fakeDesktop) SetTitle(_ context.Context, t string) { d.record("title " + t) }
func (d *fakeDesktop) SetSize(context.Context, int, int)    { d.record("size") }
func (d *fakeDesktop) Reload(context.Context)               { d.record("reload") }
func (d *fakeDesktop) ExecJS(_ context.Context, js string) {
	d.mu.Lock()
	d.scripts = append(d.scripts, js)
	d.mu.Unlock()
}
func (d *fakeDesktop) Alert(_ context.Context, title, _ string) error {
	d.mu.Lock()
	d.alerts = append(d.alerts, title)
	d.mu.Unlock()
	return nil
}
func (d *fakeDesktop) Quit(context.Context) {
	d.record("quit")
	d.quit <- struct{}{}
}

func (d *fakeDesktop) snapshot() ([]string, []string, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...), append([]string(nil), d.scripts...), append([]string(nil), d.alerts...)
}

// fakeHost stands in for wails.Run: it starts the app, hands the options to
// the test and blocks until the runtime is told to quit.
type fakeHost struct {
	apps chan *options.App
	rt   *fakeDesktop
}

func (h *fakeHost) run(o *options.App) error {
	ctx := context.Background()
	if o.OnStartup != nil {
		o.OnStartup(ctx)
	}
	h.apps <- o
	<-h.rt.quit
	if o.OnBeforeClose != nil && o.OnBeforeClose(ctx) {
		return nil
	}
	if o.OnShutdown != nil {
		o.OnShutdown(ctx)
	}
	return nil
}

func newTestWails(t *testing.T) (*Wails, *fakeHost, *bytes.Buffer) {
	t.Helper()
	s := NewWails(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rt := newFakeDesktop()
	h := &fakeHost{apps: make(chan *options.App, 2), rt: rt}
	var stderr bytes.Buffer
	s.rt = rt
	s.run = h.run
	s.stderr = &stderr
	return s, h, &stderr
}

func runMain(s *Wails) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Main() }()
	return done
}

func nextApp(t *testing.T, h *fakeHost) *options.App {
	t.Helper()
	select {
	case o := <-h.apps:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("window host not started")
		return nil
	}
}

func nextEvent(t *testing.T, s *Wails) window.EventType {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no shell event")
		return 0
	}
}

func TestWailsAppliesWindowOptions(t *testing.T) {
	s, h, _ := newTestWails(t)
	dist := writeDist(t)
	c := window.NewController(s, window.DefaultOptions(filepath.Join(dist, "bridge.js")), "", filepath.Dir(dist), nil)
	done := runMain(s)

	_, err := c.Create()
	require.NoError(t, err)
	o := nextApp(t, h)
	assert.Equal(t, "UroFlow", o.Title)
	assert.Equal(t, 1200, o.Width)
	assert.Equal(t, 840, o.Height)
	assert.False(t, o.EnableDefaultContextMenu)
	require.NotNil(t, o.SingleInstanceLock)
	assert.Equal(t, SingleInstanceID, o.SingleInstanceLock.UniqueId)
	assert.Equal(t, 1, s.WindowCount())

	rec := httptest.NewRecorder()
	o.AssetServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>uroflow</html>", rec.Body.String())

	s.Quit()
	assert.Equal(t, window.EventQuit, nextEvent(t, s))
	require.NoError(t, <-done)
}

func TestWailsInjectsBridgeOnDomReady(t *testing.T) {
	s, h, _ := newTestWails(t)
	dist := writeDist(t)
	bridge := filepath.Join(dist, "bridge.js")
	require.NoError(t, os.WriteFile(bridge, []byte("window.uroflow = {}"), 0o644))
	w, _ := s.NewWindow(window.DefaultOptions(bridge))
	done := runMain(s)

	require.NoError(t, w.LoadFile(filepath.Join(dist, "index.html")))
	o := nextApp(t, h)
	o.OnDomReady(context.Background())
	_, scripts, _ := h.rt.snapshot()
	assert.Equal(t, []string{"window.uroflow = {}"}, scripts)

	s.Quit()
	require.NoError(t, <-done)
}

func TestWailsMissingBridgeIsSkipped(t *testing.T) {
	s, _, _ := newTestWails(t)
	_, _ = s.NewWindow(window.DefaultOptions(filepath.Join(t.TempDir(), "bridge.js")))
	s.onDomReady(context.Background())
	_, scripts, _ := s.rt.(*fakeDesktop).snapshot()
	assert.Empty(t, scripts)
}

func TestWailsCloseReportsAllWindowsClosedThenActivateReopens(t *testing.T) {
	s, h, _ := newTestWails(t)
	dist := writeDist(t)
	c := window.NewController(s, window.DefaultOptions(""), "", filepath.Dir(dist), nil)
	done := runMain(s)

	_, err := c.Create()
	require.NoError(t, err)
	o := nextApp(t, h)

	assert.True(t, o.OnBeforeClose(context.Background()), "close is deferred to the app")
	assert.Equal(t, window.EventAllWindowsClosed, nextEvent(t, s))
	assert.Zero(t, s.WindowCount())

	o.SingleInstanceLock.OnSecondInstanceLaunch(options.SecondInstanceData{Args: []string{"uroflow-desktop"}})
	assert.Equal(t, window.EventActivate, nextEvent(t, s))
	made, err := c.Activate()
	require.NoError(t, err)
	assert.True(t, made)
	assert.Equal(t, 1, s.WindowCount())
	calls, _, _ := h.rt.snapshot()
	assert.Equal(t, []string{"hide", "title UroFlow", "size", "reload", "show"}, calls)

	s.Quit()
	assert.Equal(t, window.EventQuit, nextEvent(t, s))
	require.NoError(t, <-done)
}

func TestWailsErrorBoxBeforeWindow(t *testing.T) {
	s, h, stderr := newTestWails(t)
	s.run = func(o *options.App) error {
		assert.True(t, o.StartHidden)
		o.OnStartup(context.Background())
		<-h.rt.quit
		return nil
	}
	done := runMain(s)

	s.ShowErrorBox("Backend Not Found", "missing at /x")
	_, _, alerts := h.rt.snapshot()
	assert.Equal(t, []string{"Backend Not Found"}, alerts)
	assert.Contains(t, stderr.String(), "missing at /x")

	s.Quit()
	assert.Equal(t, window.EventQuit, nextEvent(t, s))
	require.NoError(t, <-done)
}

func TestWailsQuitBeforeWindow(t *testing.T) {
	s, _, _ := newTestWails(t)
	done := runMain(s)
	s.Quit()
	s.Quit()
	require.NoError(t, <-done)
	assert.Equal(t, window.EventQuit, nextEvent(t, s))
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected second event %v", ev)
	default:
	}
}

func TestRendererProxyKeepsURL(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RequestURI())
		mu.Unlock()
		_, _ = io.WriteString(w, "vite")
	}))
	defer upstream.Close()

	h, err := RendererProxy(upstream.URL + "/app/?debug=1")
	require.NoError(t, err)

	for _, p := range []string{"/", "/src/main.ts"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "vite", rec.Body.String())
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/app/?debug=1", "/src/main.ts"}, seen)
}

func TestRendererProxyRejectsBadURL(t *testing.T) {
	_, err := RendererProxy("localhost:5173")
	assert.Error(t, err)
	_, err = RendererProxy("file:///tmp/index.html")
	assert.Error(t, err)
}
