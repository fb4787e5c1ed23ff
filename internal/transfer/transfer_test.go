package transfer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type shortWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		n := w.limit - w.buf.Len()
		w.buf.Write(p[:n])
		return n, errors.New("disk full")
	}
	return w.buf.Write(p)
}

func TestCopyWithProgress(t *testing.T) {
	payload := strings.Repeat("x", 100*1024)
	var dst bytes.Buffer
	var calls int
	var last int64

	written, err := copyWithProgress(&dst, strings.NewReader(payload), int64(len(payload)), func(w, total int64) {
		calls++
		if w < last {
			t.Errorf("progress went backwards: %d after %d", w, last)
		}
		last = w
		if total != int64(len(payload)) {
			t.Errorf("total = %d, want %d", total, len(payload))
		}
	})
	if err != nil {
		t.Fatalf("copyWithProgress failed: %v", err)
	}
	if written != int64(len(payload)) || dst.Len() != len(payload) {
		t.Errorf("written %d, buffered %d, want %d", written, dst.Len(), len(payload))
	}
	if calls == 0 {
		t.Error("progress callback never called")
	}
	if last != int64(len(payload)) {
		t.Errorf("final progress %d, want %d", last, len(payload))
	}
}

func TestCopyWithProgressNilCallback(t *testing.T) {
	var dst bytes.Buffer
	written, err := copyWithProgress(&dst, strings.NewReader("plain"), 5, nil)
	if err != nil || written != 5 {
		t.Fatalf("copy = (%d, %v), want (5, nil)", written, err)
	}
}

func TestCopyWithProgressWriteError(t *testing.T) {
	w := &shortWriter{limit: 10}
	written, err := copyWithProgress(w, strings.NewReader(strings.Repeat("y", 100)), 100, nil)
	if err == nil {
		t.Fatal("expected write error")
	}
	if written != 10 {
		t.Errorf("written = %d, want 10", written)
	}
}

func TestCopyWithProgressReadError(t *testing.T) {
	boom := errors.New("read fault")
	r := io.MultiReader(strings.NewReader("head"), &failingReader{err: boom})
	var dst bytes.Buffer
	written, err := copyWithProgress(&dst, r, 0, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if written != 4 {
		t.Errorf("written = %d, want 4", written)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
