package cdoc

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"legacy":         FormatLegacy,
		"1.0":            FormatLegacy,
		"ENCDOC-XML|1.0": FormatLegacy,
		" Current ":      FormatCurrent,
		"1.1":            FormatCurrent,
		"encdoc-xml|1.1": FormatCurrent,
	} {
		got, ok := ParseFormat(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseFormat("2.0")
	assert.False(t, ok)
}

func TestFormatText(t *testing.T) {
	assert.Equal(t, "legacy", FormatLegacy.String())
	assert.Equal(t, "1.1", FormatCurrent.Version())

	text, err := FormatCurrent.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "current", string(text))

	_, err = Format(0).MarshalText()
	assert.Error(t, err)
}

func TestDeclaredFormatIsExact(t *testing.T) {
	f, ok := declaredFormat(" ENCDOC-XML|1.1\n")
	assert.True(t, ok)
	assert.Equal(t, FormatCurrent, f)

	for _, v := range []string{"encdoc-xml|1.1", "ENCDOC-XML|1.1|extra", "1.1", ""} {
		_, ok := declaredFormat(v)
		assert.False(t, ok, v)
	}
}

func TestOrigFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lorem1.txt|57|text/plain|D0", "lorem1.txt"},
		{"a|b.txt|10|text/plain|D1", "a|b.txt"},
		{"  spaced.txt |1|application/octet-stream|D0", "spaced.txt"},
		{"bare.txt", "bare.txt"},
		{"|0|text/plain|D0", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, origFileName(tt.in), tt.in)
	}
}

func TestCommonNameFallsBackToSubjectNames(t *testing.T) {
	cert := &x509.Certificate{Subject: pkix.Name{
		Names: []pkix.AttributeTypeAndValue{
			{Type: asn1.ObjectIdentifier{2, 5, 4, 10}, Value: "Org"},
			{Type: asn1.ObjectIdentifier{2, 5, 4, 3}, Value: " From Names "},
		},
	}}
	assert.Equal(t, "From Names", commonName(cert))

	cert.Subject.CommonName = "Direct"
	assert.Equal(t, "Direct", commonName(cert))

	assert.Equal(t, "", commonName(&x509.Certificate{}))
}

func TestParseErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := error(&ParseError{Op: OpRecipients, Code: CodeInvalidCertificate, Message: "recipient 0", Cause: cause})

	assert.ErrorIs(t, err, ErrInvalidContainer)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "cdoc recipients: invalid_certificate: recipient 0: boom", err.Error())

	wrapped := fmt.Errorf("reading upload: %w", err)
	assert.Equal(t, CodeInvalidCertificate, CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrInvalidContainer)

	assert.Equal(t, Code(""), CodeOf(cause))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestDecodeCertificateRejectsGarbage(t *testing.T) {
	_, err := DecodeCertificate([]byte("not DER"))
	assert.Error(t, err)
}
