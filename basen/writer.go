package basen

import (
	"bytes"
	"io"
)

// Writer transcodes everything written to it and forwards the result to an
// underlying writer. Close signals end-of-stream but does not close the
// underlying writer.
type Writer struct {
	w      io.Writer
	codec  *Codec
	encode bool
	ctx    Context
	buf    []byte
	err    error
}

// NewEncoder returns a Writer that encodes raw bytes to text.
func NewEncoder(codec *Codec, w io.Writer) *Writer {
	return &Writer{w: w, codec: codec, encode: true}
}

// NewDecoder returns a Writer that decodes text to raw bytes.
func NewDecoder(codec *Codec, w io.Writer) *Writer {
	return &Writer{w: w, codec: codec}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	var err error
	if w.encode {
		err = w.codec.Encode(&w.ctx, p)
	} else {
		err = w.codec.Decode(&w.ctx, p)
	}
	if err != nil {
		w.err = err
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush forwards all output produced so far.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	n := w.ctx.Available()
	if n == 0 {
		return nil
	}
	if cap(w.buf) < n {
		w.buf = make([]byte, n)
	}
	buf := w.buf[:n]
	if _, err := w.ctx.ReadResults(buf); err != nil {
		w.err = err
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Close flushes the residual group and forwards the remaining output.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	var err error
	if w.encode {
		err = w.codec.EncodeEOF(&w.ctx)
	} else {
		err = w.codec.DecodeEOF(&w.ctx)
	}
	if err != nil {
		w.err = err
		return err
	}
	return w.Flush()
}

// DecodeString decodes s with a fresh context.
func (c *Codec) DecodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(c.DecodedLen(len(s)))
	w := NewDecoder(c, &buf)
	if _, err := io.WriteString(w, s); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeToString encodes b with a fresh context.
func (c *Codec) EncodeToString(b []byte) string {
	var ctx Context
	// Encode cannot fail on a fresh context.
	_ = c.Encode(&ctx, b)
	_ = c.EncodeEOF(&ctx)
	return string(ctx.out)
}
