package env

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

// Variables injected into the backend's environment.
const (
	Unbuffered      = "PYTHONUNBUFFERED"
	BackendPort     = "BACKEND_PORT"
	LegacyPortAlias = "UROFLOW_BACKEND_PORT"
)

type Var map[string]string

// Env composes a child environment from a base (normally the OS
// environment) and launcher overrides.
type Env struct {
	Var Var // overrides (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// ForBackend returns an Env carrying extra ("K=V") overrides, the
// unbuffered-output hint and the resolved backend port under both names the
// backend reads. The port always wins over extra.
func ForBackend(port int, extra ...string) *Env {
	e := New()
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	p := strconv.Itoa(port)
	e.Set(Unbuffered, "1")
	e.Set(BackendPort, p)
	e.Set(LegacyPortAlias, p)
	return e
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() { e.env = parse(os.Environ()) }

// FromList uses kvs ("K=V") as the base instead of the OS environment.
func (e *Env) FromList(kvs []string) { e.env = parse(kvs) }

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Unset removes an override.
func (e *Env) Unset(k string) {
	if e.Var != nil {
		delete(e.Var, k)
	}
}

// Merge composes the final environment list: base first, then overrides.
// The result is sorted by key so it is stable across calls.
func (e *Env) Merge() []string {
	if e.env == nil {
		e.FromOS()
	}
	m := make(Var, len(e.env)+len(e.Var))
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

func parse(kvs []string) Var {
	base := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	return base
}
