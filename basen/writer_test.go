package basen

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterDecodesAcrossWrites(t *testing.T) {
	var out bytes.Buffer
	w := NewDecoder(StdEncoding, &out)

	for _, part := range []string{"SGVs", "bG8s", "IHdv", "c", "mxk", "IQ", "=="} {
		n, err := io.WriteString(w, part)
		require.NoError(t, err)
		assert.Equal(t, len(part), n)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, "Hello, world!", out.String())
}

func TestWriterEncodes(t *testing.T) {
	var out bytes.Buffer
	w := NewEncoder(StdEncoding, &out)
	_, err := w.Write([]byte("Hello, "))
	require.NoError(t, err)
	_, err = w.Write([]byte("world!"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "SGVsbG8sIHdvcmxkIQ==", out.String())
}

func TestWriterStickyError(t *testing.T) {
	var out bytes.Buffer
	w := NewDecoder(StdEncoding, &out)
	_, err := w.Write([]byte("QU*D"))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = w.Write([]byte("QUJD"))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, w.Close(), ErrMalformed)
	assert.Zero(t, out.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterPropagatesUnderlyingError(t *testing.T) {
	w := NewDecoder(StdEncoding, failingWriter{})
	_, err := w.Write([]byte("QUJD"))
	require.EqualError(t, err, "disk full")
	assert.EqualError(t, w.Close(), "disk full")
}
