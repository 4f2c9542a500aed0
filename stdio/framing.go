package stdio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrEmbeddedNewline is returned by WriteMessage for a message that would
// break line framing.
var ErrEmbeddedNewline = errors.New("stdio: message contains a newline")

// ReadMessage reads one newline-terminated message. The trailing "\n" and an
// optional "\r" before it are stripped. A final line without a terminator is
// returned as a message; io.EOF is returned only when no bytes were read.
//
// Lines are not length limited and may contain any bytes, NUL included; the
// JSON decoder rejects what is not valid JSON.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line, nil
}

// WriteMessage writes msg followed by a single "\n" and flushes w before
// returning.
func WriteMessage(w *bufio.Writer, msg []byte) error {
	if bytes.IndexByte(msg, '\n') >= 0 {
		return ErrEmbeddedNewline
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
