package backend

import (
	"bytes"
	"io"
	"sync"
)

// Tag prefixes every relayed backend line.
const Tag = "[backend] "

// relay copies child output to dst, prefixing each line with Tag, and
// mirrors the raw bytes to copyTo when set. Write never fails and never
// blocks on anything but the sinks themselves, so a broken host sink can't
// stall the child.
type relay struct {
	mu        sync.Mutex
	dst       io.Writer
	copyTo    io.Writer
	midLine   bool
	prefix    []byte
	writeErrs int
}

func newRelay(dst, copyTo io.Writer) *relay {
	return &relay{dst: dst, copyTo: copyTo, prefix: []byte(Tag)}
}

func (r *relay) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.copyTo != nil {
		if _, err := r.copyTo.Write(p); err != nil {
			r.writeErrs++
		}
	}
	if r.dst == nil {
		return len(p), nil
	}
	var buf bytes.Buffer
	rest := p
	for len(rest) > 0 {
		if !r.midLine {
			buf.Write(r.prefix)
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			buf.Write(rest)
			r.midLine = true
			break
		}
		buf.Write(rest[:i+1])
		rest = rest[i+1:]
		r.midLine = false
	}
	if _, err := r.dst.Write(buf.Bytes()); err != nil {
		r.writeErrs++
	}
	return len(p), nil
}

// flush terminates a dangling partial line so the next host log line starts clean.
func (r *relay) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.midLine && r.dst != nil {
		_, _ = r.dst.Write([]byte{'\n'})
		r.midLine = false
	}
}

func (r *relay) droppedWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErrs
}
