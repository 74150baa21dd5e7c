package window

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	url, file string
	failLoad  bool
}

func (w *fakeWindow) LoadURL(u string) error {
	if w.failLoad {
		return errors.New("load failed")
	}
	w.url = u
	return nil
}

func (w *fakeWindow) LoadFile(p string) error {
	if w.failLoad {
		return errors.New("load failed")
	}
	w.file = p
	return nil
}

type fakeShell struct {
	windows  []*fakeWindow
	opts     []Options
	failLoad bool
	events   chan EventType
}

func (s *fakeShell) NewWindow(o Options) (Window, error) {
	w := &fakeWindow{failLoad: s.failLoad}
	s.windows = append(s.windows, w)
	s.opts = append(s.opts, o)
	return w, nil
}
func (s *fakeShell) WindowCount() int            { return len(s.windows) }
func (s *fakeShell) ShowErrorBox(string, string) {}
func (s *fakeShell) Quit()                       {}
func (s *fakeShell) Events() <-chan EventType    { return s.events }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCreateLoadsRendererURLVerbatim(t *testing.T) {
	sh := &fakeShell{}
	url := "http://localhost:5173/?debug=1"
	c := NewController(sh, DefaultOptions("preload.js"), url, "/app/frontend", quiet)

	_, err := c.Create()
	require.NoError(t, err)
	require.Len(t, sh.windows, 1)
	assert.Equal(t, url, sh.windows[0].url)
	assert.Empty(t, sh.windows[0].file)
	assert.Equal(t, url, c.Target().String())
}

func TestCreateLoadsBundledEntry(t *testing.T) {
	sh := &fakeShell{}
	c := NewController(sh, DefaultOptions(""), "", "/app/frontend", quiet)

	_, err := c.Create()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/app/frontend", "dist", "index.html"), sh.windows[0].file)
	assert.Empty(t, sh.windows[0].url)
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions("bridge.js")
	assert.Equal(t, 1200, o.Width)
	assert.Equal(t, 840, o.Height)
	assert.Equal(t, "UroFlow", o.Title)
	assert.True(t, o.Isolated)
	assert.Equal(t, "bridge.js", o.Bridge)
}

func TestActivateOnlyWithoutWindows(t *testing.T) {
	sh := &fakeShell{}
	c := NewController(sh, DefaultOptions(""), "", "/f", quiet)

	made, err := c.Activate()
	require.NoError(t, err)
	assert.True(t, made)

	made, err = c.Activate()
	require.NoError(t, err)
	assert.False(t, made)
	assert.Equal(t, 1, c.Created())
}

func TestCreateReportsLoadFailure(t *testing.T) {
	sh := &fakeShell{failLoad: true}
	c := NewController(sh, DefaultOptions(""), "http://x", "/f", quiet)
	_, err := c.Create()
	assert.Error(t, err)
	assert.Zero(t, c.Created())
}

func TestQuitOnAllClosed(t *testing.T) {
	assert.True(t, QuitOnAllClosed("linux"))
	assert.True(t, QuitOnAllClosed("windows"))
	assert.False(t, QuitOnAllClosed("darwin"))
}

func TestControllerWithoutShell(t *testing.T) {
	c := NewController(nil, DefaultOptions(""), "", "/f", quiet)

	_, err := c.Create()
	assert.EqualError(t, err, "window: no shell")

	made, err := c.Activate()
	assert.EqualError(t, err, "window: no shell")
	assert.False(t, made)
}
