// Package xmlsafe parses untrusted XML documents under a fixed hardening
// policy and exposes the result as a read-only element tree.
//
// The policy is not configurable:
//   - any DOCTYPE or other markup declaration rejects the document, whether or
//     not its entities are referenced;
//   - only the five predefined entities and character references are
//     recognised, so external entities can never be resolved;
//   - the character data and attribute values of the parsed tree may not exceed
//     a fixed multiple of the input size;
//   - the parser runs in strict mode and the document must have exactly one
//     root element;
//   - a single leading UTF-8 byte order mark is allowed and dropped.
//
// Every failure, whether a policy violation or plain malformed XML, wraps
// ErrRejected.
package xmlsafe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// ErrRejected is wrapped by every error returned from this package.
var ErrRejected = errors.New("xmlsafe: document rejected")

const (
	// DefaultMaxSize is the input ceiling used when a caller passes zero.
	DefaultMaxSize int64 = 64 << 20

	maxExpansionRatio = 4
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Document is an immutable parsed XML document.
type Document struct {
	doc  *etree.Document
	size int64
}

func reject(reason string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return fmt.Errorf("%w: %s: %w", ErrRejected, reason, cause)
}

// Parse reads at most maxSize bytes from r and parses them. Input longer than
// maxSize is rejected. A maxSize of zero or less selects DefaultMaxSize.
func Parse(r io.Reader, maxSize int64) (*Document, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, reject("read input", err)
	}
	if int64(len(data)) > maxSize {
		return nil, reject(fmt.Sprintf("input exceeds %d bytes", maxSize), nil)
	}
	return ParseBytes(data)
}

// ParseBytes parses an in-memory document.
func ParseBytes(data []byte) (*Document, error) {
	size := int64(len(data))
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, reject("empty document", nil)
	}

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charsetReader,
		Permissive:    false,
	}
	if _, err := doc.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, reject("malformed XML", err)
	}

	roots := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			roots++
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return nil, reject("character data outside root element", nil)
			}
		}
	}
	if roots != 1 {
		return nil, reject(fmt.Sprintf("expected one root element, found %d", roots), nil)
	}

	expanded, err := inspect(&doc.Element)
	if err != nil {
		return nil, err
	}
	// With declarations refused only the predefined entities and character
	// references remain, and those never grow the text. The ceiling holds
	// should a future etree start expanding entities on its own.
	if expanded > int64(len(data))*maxExpansionRatio {
		return nil, reject("entity expansion ceiling exceeded", nil)
	}

	return &Document{doc: doc, size: size}, nil
}

// inspect walks every token, rejecting declarations and summing the size of
// character data and attribute values.
func inspect(el *etree.Element) (int64, error) {
	var total int64
	for _, a := range el.Attr {
		total += int64(len(a.Value))
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Directive:
			kind, _, _ := strings.Cut(strings.TrimSpace(t.Data), " ")
			return 0, reject(fmt.Sprintf("markup declaration <!%s> not allowed", kind), nil)
		case *etree.CharData:
			total += int64(len(t.Data))
		case *etree.Element:
			n, err := inspect(t)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// Root returns the document element.
func (d *Document) Root() Element {
	return Element{el: d.doc.Root()}
}

// Size returns the number of input bytes the document was parsed from.
func (d *Document) Size() int64 {
	return d.size
}
