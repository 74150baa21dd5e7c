package backend

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("sink closed") }

func TestRelayPrefixesEachLine(t *testing.T) {
	var dst, raw bytes.Buffer
	r := newRelay(&dst, &raw)

	_, _ = r.Write([]byte("one\ntwo\n"))
	_, _ = r.Write([]byte("thr"))
	_, _ = r.Write([]byte("ee\nfour"))
	r.flush()

	assert.Equal(t, "[backend] one\n[backend] two\n[backend] three\n[backend] four\n", dst.String())
	assert.Equal(t, "one\ntwo\nthree\nfour", raw.String())
}

func TestRelayNeverFails(t *testing.T) {
	r := newRelay(failingWriter{}, failingWriter{})
	n, err := r.Write([]byte("hello\n"))
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 2, r.droppedWrites())
}

func TestRelayFlushIsNoopOnLineBoundary(t *testing.T) {
	var dst bytes.Buffer
	r := newRelay(&dst, nil)
	_, _ = r.Write([]byte("done\n"))
	r.flush()
	assert.Equal(t, "[backend] done\n", dst.String())
}
