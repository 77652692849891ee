package cdoc

import (
	"errors"
	"strings"

	"github.com/leifj/cdoc/basen"
	"github.com/leifj/cdoc/xmlenc"
	"github.com/leifj/cdoc/xmlsafe"
)

// Format identifies the container generation.
type Format int

const (
	// FormatLegacy is ENCDOC-XML 1.0: CBC payload encryption, RSA recipients,
	// file names carried in a nested DigiDoc manifest or in properties.
	FormatLegacy Format = iota + 1
	// FormatCurrent is ENCDOC-XML 1.1: GCM payload encryption, RSA or ECC
	// recipients, one orig_file property per data file.
	FormatCurrent
)

// Declared DocumentFormat property values.
const (
	DocumentFormatLegacy  = "ENCDOC-XML|1.0"
	DocumentFormatCurrent = "ENCDOC-XML|1.1"
)

// Encryption property names.
const (
	PropertyDocumentFormat = "DocumentFormat"
	PropertyOrigFile       = "orig_file"
	PropertyFilename       = "Filename"
	PropertySignedDoc      = "SignedDoc"
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCurrent:
		return "current"
	default:
		return ""
	}
}

// Version returns the declared version number, "1.0" or "1.1".
func (f Format) Version() string {
	switch f {
	case FormatLegacy:
		return "1.0"
	case FormatCurrent:
		return "1.1"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if f.String() == "" {
		return nil, errors.New("cdoc: unknown format")
	}
	return []byte(f.String()), nil
}

// ParseFormat accepts "legacy", "current", "1.0", "1.1" or a full
// DocumentFormat property value.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "1.0", strings.ToLower(DocumentFormatLegacy):
		return FormatLegacy, true
	case "current", "1.1", strings.ToLower(DocumentFormatCurrent):
		return FormatCurrent, true
	default:
		return 0, false
	}
}

func declaredFormat(v string) (Format, bool) {
	switch strings.TrimSpace(v) {
	case DocumentFormatLegacy:
		return FormatLegacy, true
	case DocumentFormatCurrent:
		return FormatCurrent, true
	default:
		return 0, false
	}
}

// container is a parsed document whose generation has been established.
type container struct {
	format Format
	data   *xmlenc.EncryptedData
}

// detect validates the required structure of root and classifies it.
func detect(root xmlsafe.Element) (*container, error) {
	if !root.Is(xmlenc.NamespaceXMLEnc, "EncryptedData") {
		return nil, newError(CodeUnrecognizedFormat, nil,
			"root element {%s}%s is not EncryptedData", root.NamespaceURI(), root.Tag())
	}

	ed, err := xmlenc.ParseEncryptedData(root)
	if err != nil {
		if errors.Is(err, basen.ErrMalformed) {
			return nil, newError(CodeInvalidEncoding, err, "undecodable base64 content")
		}
		return nil, newError(CodeMissingElement, err, "invalid encryption structure")
	}

	if ed.EncryptionMethod == nil {
		return nil, newError(CodeMissingElement, nil, "EncryptionMethod is missing")
	}
	if ed.KeyInfo == nil || len(ed.KeyInfo.EncryptedKeys) == 0 {
		return nil, newError(CodeMissingElement, nil, "no EncryptedKey in KeyInfo")
	}
	if ed.CipherData == nil {
		return nil, newError(CodeMissingElement, nil, "CipherData is missing")
	}

	var structural Format
	switch alg := ed.Algorithm(); {
	case xmlenc.IsGCM(alg):
		structural = FormatCurrent
	case xmlenc.IsCBC(alg):
		structural = FormatLegacy
	default:
		return nil, newError(CodeUnrecognizedFormat, nil, "unsupported payload algorithm %q", alg)
	}

	if p, ok := ed.EncryptionProperties.Property(PropertyDocumentFormat); ok {
		declared, ok := declaredFormat(p.Value)
		if !ok {
			return nil, newError(CodeUnrecognizedFormat, nil, "unknown DocumentFormat %q", p.Value)
		}
		if declared != structural {
			return nil, newError(CodeUnrecognizedFormat, nil,
				"DocumentFormat %q contradicts %s payload encryption", p.Value, structural.Version())
		}
	}

	return &container{format: structural, data: ed}, nil
}
