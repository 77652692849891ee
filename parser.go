// Package cdoc reads the public metadata of encrypted document containers
// (ENCDOC-XML 1.0 and 1.1): the names of the encrypted data files and the
// recipients able to decrypt them. Nothing is decrypted.
//
// Containers are untrusted input. They are parsed by a hardened XML walker
// that refuses DOCTYPE declarations, entity expansion and oversize input,
// and every failure is reported as an error matching ErrInvalidContainer.
package cdoc

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/leifj/cdoc/xmlsafe"
)

// Parser extracts metadata from containers. A Parser holds no per-document
// state and is safe for concurrent use.
type Parser struct {
	opts   parserOptions
	logger *zap.Logger
}

// Info is everything Inspect recovers from one container.
type Info struct {
	Format     Format      `json:"format" yaml:"format"`
	DataFiles  []string    `json:"dataFiles" yaml:"dataFiles"`
	Recipients []Recipient `json:"recipients" yaml:"recipients"`
}

// Operation names used for errors and metrics.
const (
	OpDataFiles  = "datafiles"
	OpRecipients = "recipients"
	OpFormat     = "format"
	OpInspect    = "inspect"
)

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Parser{
		opts:   o,
		logger: o.logger.Named("cdoc"),
	}
}

var defaultParser = NewParser()

// GetDataFileNames returns the names of the data files in the container read
// from r, in document order.
func GetDataFileNames(r io.Reader) ([]string, error) {
	return defaultParser.DataFileNames(r)
}

// GetRecipients returns the recipients of the container read from r, in
// document order.
func GetRecipients(r io.Reader) ([]Recipient, error) {
	return defaultParser.Recipients(r)
}

// DataFileNames returns the names of the data files in document order. An
// empty list is a valid result.
func (p *Parser) DataFileNames(r io.Reader) ([]string, error) {
	c, err := p.load(r)
	if err == nil {
		var names []string
		names, err = p.dataFileNames(c)
		if err == nil {
			p.logger.Debug("data files recovered", zap.Stringer("format", c.format), zap.Int("count", len(names)))
			p.done(OpDataFiles, c, nil)
			return names, nil
		}
	}
	return nil, p.done(OpDataFiles, c, err)
}

// Recipients returns the recipients in document order.
func (p *Parser) Recipients(r io.Reader) ([]Recipient, error) {
	c, err := p.load(r)
	if err == nil {
		var recipients []Recipient
		recipients, err = p.recipients(c)
		if err == nil {
			p.logger.Debug("recipients recovered", zap.Stringer("format", c.format), zap.Int("count", len(recipients)))
			p.done(OpRecipients, c, nil)
			return recipients, nil
		}
	}
	return nil, p.done(OpRecipients, c, err)
}

// Format reports the container generation without extracting anything else.
func (p *Parser) Format(r io.Reader) (Format, error) {
	c, err := p.load(r)
	if err != nil {
		return 0, p.done(OpFormat, c, err)
	}
	p.done(OpFormat, c, nil)
	return c.format, nil
}

// Inspect recovers the format, data file names and recipients from a single
// parse of r. It fails if either list cannot be recovered.
func (p *Parser) Inspect(r io.Reader) (*Info, error) {
	c, err := p.load(r)
	if err != nil {
		return nil, p.done(OpInspect, c, err)
	}
	names, err := p.dataFileNames(c)
	if err != nil {
		return nil, p.done(OpInspect, c, err)
	}
	recipients, err := p.recipients(c)
	if err != nil {
		return nil, p.done(OpInspect, c, err)
	}
	p.done(OpInspect, c, nil)
	return &Info{Format: c.format, DataFiles: names, Recipients: recipients}, nil
}

func (p *Parser) load(r io.Reader) (*container, error) {
	if r == nil {
		return nil, newError(CodeRejectedXML, nil, "nil reader")
	}
	doc, err := xmlsafe.Parse(r, p.opts.maxSize)
	if err != nil {
		return nil, newError(CodeRejectedXML, err, "document refused")
	}
	c, err := detect(doc.Root())
	if err != nil {
		return nil, err
	}
	p.logger.Debug("container detected",
		zap.Stringer("format", c.format),
		zap.Int64("bytes", doc.Size()),
		zap.Int("encryptedKeys", len(c.data.KeyInfo.EncryptedKeys)))
	return c, nil
}

// done stamps err with op, records the call and returns err.
func (p *Parser) done(op string, c *container, err error) error {
	format := ""
	if c != nil {
		format = c.format.String()
	}
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			pe = newError(CodeRejectedXML, err, "unexpected failure")
			err = pe
		}
		pe.Op = op
		p.logger.Debug("container refused", zap.String("op", op), zap.String("code", string(pe.Code)), zap.Error(err))
	}
	p.opts.metrics.RecordParse(op, format, err)
	return err
}
