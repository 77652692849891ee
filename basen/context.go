package basen

import "fmt"

type state uint8

const (
	stateAccumulating state = iota
	stateFlushed
)

// Context is the mutable state of a single transcode operation. The zero
// value is ready to use. A Context must not be shared between goroutines or
// reused for a second stream.
type Context struct {
	work    uint32
	modulus int
	pads    int
	padded  bool
	linePos int
	out     []byte
	state   state
}

// Available returns the number of output bytes ready to be read.
func (ctx *Context) Available() int {
	return len(ctx.out)
}

// Flushed reports whether end-of-stream has been signalled.
func (ctx *Context) Flushed() bool {
	return ctx.state == stateFlushed
}

// ReadResults moves all available output into dst. It writes nothing and
// returns ErrShortBuffer when dst is smaller than Available.
func (ctx *Context) ReadResults(dst []byte) (int, error) {
	n := len(ctx.out)
	if n == 0 {
		return 0, nil
	}
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(dst))
	}
	copy(dst, ctx.out)
	ctx.out = ctx.out[:0]
	return n, nil
}
