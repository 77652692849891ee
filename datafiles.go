package cdoc

import (
	"bytes"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/leifj/cdoc/basen"
	"github.com/leifj/cdoc/xmlenc"
	"github.com/leifj/cdoc/xmlsafe"
)

// origFileFields is the field count of an orig_file value,
// name|size|mime|id.
const origFileFields = 4

// dataFileNames extracts the payload file names of c in document order.
func (p *Parser) dataFileNames(c *container) ([]string, error) {
	props := c.data.EncryptionProperties

	if c.format == FormatCurrent {
		if props == nil {
			return nil, newError(CodeMissingElement, nil, "EncryptionProperties is missing")
		}
		return origFileNames(props)
	}

	if sd, ok := props.Property(PropertySignedDoc); ok {
		return p.manifestNames(sd)
	}
	if len(props.All(PropertyOrigFile)) > 0 {
		return origFileNames(props)
	}
	if fn, ok := props.Property(PropertyFilename); ok {
		name := strings.TrimSpace(fn.Value)
		if name == "" {
			return nil, newError(CodeMissingElement, nil, "empty Filename property")
		}
		return []string{name}, nil
	}
	return nil, newError(CodeMissingElement, nil, "no data file manifest, orig_file or Filename property")
}

func origFileNames(props *xmlenc.EncryptionProperties) ([]string, error) {
	names := make([]string, 0, len(props.Properties))
	for i, prop := range props.All(PropertyOrigFile) {
		name := origFileName(prop.Value)
		if name == "" {
			return nil, newError(CodeMissingElement, nil, "orig_file property %d has no file name", i)
		}
		names = append(names, name)
	}
	return names, nil
}

// origFileName returns the name part of an orig_file value. The name is
// everything before the last three fields, so names containing '|' survive.
func origFileName(v string) string {
	fields := strings.Split(v, "|")
	if len(fields) < origFileFields {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(strings.Join(fields[:len(fields)-(origFileFields-1)], "|"))
}

// manifestNames reads the nested DigiDoc manifest carried by the SignedDoc
// property, as markup, escaped XML text or base64.
func (p *Parser) manifestNames(prop xmlenc.EncryptionProperty) ([]string, error) {
	if children := prop.Element.Children(); len(children) > 0 {
		if len(children) > 1 {
			p.logger.Warn("ignoring extra elements in SignedDoc property", zap.Int("count", len(children)-1))
		}
		return p.manifestFileNames(children[0])
	}

	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(prop.Value), "\ufeff"))
	if text == "" {
		return nil, newError(CodeMissingElement, nil, "empty SignedDoc property")
	}

	var raw []byte
	if strings.HasPrefix(text, "<") {
		raw = []byte(text)
	} else {
		decoded, err := basen.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, newError(CodeInvalidEncoding, err, "SignedDoc property is not valid base64")
		}
		raw = decoded
	}

	doc, err := xmlsafe.Parse(bytes.NewReader(raw), p.opts.maxSize)
	if err != nil {
		return nil, newError(CodeRejectedXML, err, "nested manifest refused")
	}
	return p.manifestFileNames(doc.Root())
}

func (p *Parser) manifestFileNames(root xmlsafe.Element) ([]string, error) {
	if root.Tag() != "SignedDoc" {
		return nil, newError(CodeUnrecognizedFormat, nil, "nested manifest root is %s, not SignedDoc", root.Tag())
	}

	var files []xmlsafe.Element
	if ns := root.NamespaceURI(); ns != "" {
		found, err := root.FindNS(ns, "DataFile")
		if err != nil {
			return nil, newError(CodeRejectedXML, err, "nested manifest namespaces")
		}
		files = found
	} else {
		files = root.FindAll(".//DataFile")
	}

	names := lo.FilterMap(files, func(f xmlsafe.Element, _ int) (string, bool) {
		name, ok := f.Attr("Filename")
		return strings.TrimSpace(name), ok
	})
	if len(names) != len(files) {
		return nil, newError(CodeMissingElement, nil, "DataFile without Filename attribute")
	}
	if lo.Contains(names, "") {
		return nil, newError(CodeMissingElement, nil, "DataFile with empty Filename")
	}
	return names, nil
}
