package capture

import (
	"bufio"
	"errors"
	"os"
)

const writeBufferSize = 64 << 10

// utteranceWriter appends PCM to one participant file. The handle is opened
// lazily on the first write after each close, so a pause in speech releases
// the file and the next utterance appends to it.
type utteranceWriter struct {
	path       string
	f          *os.File
	bw         *bufio.Writer
	written    int64
	utterances int
}

// write appends p, opening the file if needed. The returned op names the
// failing step.
func (w *utteranceWriter) write(p []byte) (op string, err error) {
	if w.f == nil {
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return "create", err
		}
		w.f = f
		w.bw = bufio.NewWriterSize(f, writeBufferSize)
		w.utterances++
	}
	n, err := w.bw.Write(p)
	w.written += int64(n)
	if err != nil {
		return "write", err
	}
	return "", nil
}

// open reports whether an utterance is in progress.
func (w *utteranceWriter) open() bool { return w.f != nil }

// close flushes and closes the current handle. It is a no-op when no
// utterance is open.
func (w *utteranceWriter) close() error {
	if w.f == nil {
		return nil
	}
	ferr := w.bw.Flush()
	cerr := w.f.Close()
	w.f, w.bw = nil, nil
	return errors.Join(ferr, cerr)
}
