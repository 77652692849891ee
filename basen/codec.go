// Package basen implements a streaming radix-64 transcoder.
//
// Input may arrive in arbitrarily sized chunks. A four character group split
// across two chunks is held in the caller's Context until the rest of the
// group arrives, so the codec itself carries no per-stream state and is safe
// for concurrent use with distinct contexts.
//
// A Context is single-use: once DecodeEOF (or EncodeEOF) has flushed it, any
// further data is rejected with ErrFinished.
package basen

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned for characters outside the alphabet, misplaced
	// padding, truncated groups and non-zero trailing bits.
	ErrMalformed = errors.New("basen: malformed input")
	// ErrFinished is returned when data is fed to a context that has already
	// received end-of-stream.
	ErrFinished = errors.New("basen: context already flushed")
	// ErrShortBuffer is returned by ReadResults when the destination cannot
	// hold all available output.
	ErrShortBuffer = errors.New("basen: output buffer too small")
)

const (
	stdAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	urlAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	// StdPadding is the standard padding character.
	StdPadding byte = '='

	invalid = 0xff
)

// Codec describes one radix-64 dialect: its alphabet, padding character and
// output line wrapping.
type Codec struct {
	encode     [64]byte
	decode     [256]byte
	pad        byte
	lineLength int
	lineSep    []byte
}

var (
	// StdEncoding is RFC 4648 base64 without line wrapping.
	StdEncoding = NewCodec(stdAlphabet, StdPadding, 0, nil)
	// URLEncoding is the RFC 4648 URL and filename safe alphabet.
	URLEncoding = NewCodec(urlAlphabet, StdPadding, 0, nil)
	// MIMEEncoding wraps output at 76 characters with CRLF.
	MIMEEncoding = NewCodec(stdAlphabet, StdPadding, 76, []byte("\r\n"))
	// PEMEncoding wraps output at 64 characters with LF, as found in
	// ds:X509Certificate text blocks.
	PEMEncoding = NewCodec(stdAlphabet, StdPadding, 64, []byte("\n"))
)

// NewCodec returns a codec for the 64 character alphabet. lineLength is
// rounded down to a multiple of four; zero disables wrapping. It panics if the
// alphabet is not 64 distinct characters or collides with the padding or
// whitespace characters.
func NewCodec(alphabet string, pad byte, lineLength int, lineSep []byte) *Codec {
	if len(alphabet) != 64 {
		panic("basen: alphabet must be 64 bytes long")
	}
	if lineLength < 0 {
		lineLength = 0
	}
	c := &Codec{
		pad:        pad,
		lineLength: lineLength / 4 * 4,
		lineSep:    append([]byte(nil), lineSep...),
	}
	copy(c.encode[:], alphabet)
	for i := range c.decode {
		c.decode[i] = invalid
	}
	for i := 0; i < len(alphabet); i++ {
		ch := alphabet[i]
		if ch == pad || isWhitespace(ch) || c.decode[ch] != invalid {
			panic(fmt.Sprintf("basen: invalid alphabet character %q", ch))
		}
		c.decode[ch] = byte(i)
	}
	return c
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// Decode consumes one chunk of text. Complete groups are converted to bytes
// and made available through ctx.ReadResults; an incomplete trailing group is
// retained in ctx. Whitespace is skipped.
func (c *Codec) Decode(ctx *Context, in []byte) error {
	if ctx.state == stateFlushed {
		return ErrFinished
	}
	for _, b := range in {
		if isWhitespace(b) {
			continue
		}
		if b == c.pad {
			if err := c.decodePad(ctx); err != nil {
				return err
			}
			continue
		}
		if ctx.pads > 0 || ctx.padded {
			return fmt.Errorf("%w: data after padding", ErrMalformed)
		}
		v := c.decode[b]
		if v == invalid {
			return fmt.Errorf("%w: invalid character %q", ErrMalformed, b)
		}
		ctx.work = ctx.work<<6 | uint32(v)
		ctx.modulus++
		if ctx.modulus == 4 {
			ctx.out = append(ctx.out, byte(ctx.work>>16), byte(ctx.work>>8), byte(ctx.work))
			ctx.work, ctx.modulus = 0, 0
		}
	}
	return nil
}

func (c *Codec) decodePad(ctx *Context) error {
	if ctx.padded {
		return fmt.Errorf("%w: excess padding", ErrMalformed)
	}
	if ctx.pads == 0 && ctx.modulus < 2 {
		return fmt.Errorf("%w: padding at group position %d", ErrMalformed, ctx.modulus)
	}
	ctx.pads++
	if ctx.modulus+ctx.pads < 4 {
		return nil
	}
	if err := flushPartial(ctx); err != nil {
		return err
	}
	ctx.pads = 0
	ctx.padded = true
	return nil
}

// flushPartial converts a two or three character group into one or two bytes.
func flushPartial(ctx *Context) error {
	switch ctx.modulus {
	case 0:
	case 1:
		return fmt.Errorf("%w: truncated group", ErrMalformed)
	case 2:
		if ctx.work&0x0f != 0 {
			return fmt.Errorf("%w: non-zero trailing bits", ErrMalformed)
		}
		ctx.out = append(ctx.out, byte(ctx.work>>4))
	case 3:
		if ctx.work&0x03 != 0 {
			return fmt.Errorf("%w: non-zero trailing bits", ErrMalformed)
		}
		ctx.out = append(ctx.out, byte(ctx.work>>10), byte(ctx.work>>2))
	}
	ctx.work, ctx.modulus = 0, 0
	return nil
}

// DecodeEOF signals end of input and flushes a residual unpadded group.
// Calling it again on a flushed context is a no-op.
func (c *Codec) DecodeEOF(ctx *Context) error {
	if ctx.state == stateFlushed {
		return nil
	}
	ctx.state = stateFlushed
	if ctx.pads > 0 {
		return fmt.Errorf("%w: incomplete padding", ErrMalformed)
	}
	return flushPartial(ctx)
}

// Encode consumes one chunk of raw bytes. Every complete three byte group is
// written as four characters, wrapped according to the codec's line length.
func (c *Codec) Encode(ctx *Context, in []byte) error {
	if ctx.state == stateFlushed {
		return ErrFinished
	}
	for _, b := range in {
		ctx.work = ctx.work<<8 | uint32(b)
		ctx.modulus++
		if ctx.modulus == 3 {
			w := ctx.work
			c.putGroup(ctx, c.encode[w>>18&0x3f], c.encode[w>>12&0x3f], c.encode[w>>6&0x3f], c.encode[w&0x3f])
			ctx.work, ctx.modulus = 0, 0
		}
	}
	return nil
}

// EncodeEOF pads and writes any residual bytes and terminates the last line.
func (c *Codec) EncodeEOF(ctx *Context) error {
	if ctx.state == stateFlushed {
		return nil
	}
	ctx.state = stateFlushed
	switch ctx.modulus {
	case 1:
		w := ctx.work << 4
		c.putGroup(ctx, c.encode[w>>6&0x3f], c.encode[w&0x3f], c.pad, c.pad)
	case 2:
		w := ctx.work << 2
		c.putGroup(ctx, c.encode[w>>12&0x3f], c.encode[w>>6&0x3f], c.encode[w&0x3f], c.pad)
	}
	ctx.work, ctx.modulus = 0, 0
	if c.lineLength > 0 && ctx.linePos > 0 {
		ctx.out = append(ctx.out, c.lineSep...)
		ctx.linePos = 0
	}
	return nil
}

func (c *Codec) putGroup(ctx *Context, a, b, d, e byte) {
	ctx.out = append(ctx.out, a, b, d, e)
	if c.lineLength == 0 {
		return
	}
	ctx.linePos += 4
	if ctx.linePos >= c.lineLength {
		ctx.out = append(ctx.out, c.lineSep...)
		ctx.linePos = 0
	}
}

// EncodedLen returns the length of the encoding of n bytes, including line
// separators.
func (c *Codec) EncodedLen(n int) int {
	chars := (n + 2) / 3 * 4
	if c.lineLength == 0 || chars == 0 {
		return chars
	}
	lines := (chars + c.lineLength - 1) / c.lineLength
	return chars + lines*len(c.lineSep)
}

// DecodedLen returns an upper bound on the decoded length of n characters.
func (c *Codec) DecodedLen(n int) int {
	return (n + 3) / 4 * 3
}
