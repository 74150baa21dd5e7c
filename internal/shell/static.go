package shell

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// StaticHandler serves dir, answering unknown paths with entry so client-side
// routes survive a reload.
func StaticHandler(dir, entry string) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	fs := gin.Dir(dir, false)
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		p := strings.TrimPrefix(filepath.Clean("/"+c.Request.URL.Path), "/")
		if p != "" {
			if f, err := fs.Open(p); err == nil {
				st, serr := f.Stat()
				_ = f.Close()
				if serr == nil && !st.IsDir() {
					c.FileFromFS(p, fs)
					return
				}
			}
		}
		c.File(filepath.Join(dir, entry))
	})
	return r
}

// RendererProxy forwards every request to the renderer dev server at raw.
// The window's root maps to raw's path and query exactly; other paths are
// passed through unchanged.
func RendererProxy(raw string) (http.Handler, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("renderer url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("renderer url %q: want http(s)://host[:port]/path", raw)
	}
	cfg := middleware.ProxyConfig{
		Balancer: middleware.NewRandomBalancer([]*middleware.ProxyTarget{
			{Name: "renderer", URL: &url.URL{Scheme: u.Scheme, Host: u.Host}},
		}),
	}
	if entry := u.RequestURI(); entry != "/" {
		cfg.RegexRewrite = map[*regexp.Regexp]string{regexp.MustCompile(`^/$`): entry}
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.ProxyWithConfig(cfg))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// rewrites match on RequestURI, which webview asset requests leave empty
		if r.RequestURI == "" {
			r.RequestURI = r.URL.RequestURI()
		}
		e.ServeHTTP(w, r)
	}), nil
}
