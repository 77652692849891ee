package cdoc

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leifj/cdoc/xmlenc"
)

// KeyTransport tells how a recipient's copy of the content key is protected.
type KeyTransport string

const (
	// TransportRSA is direct RSA encryption of the content key.
	TransportRSA KeyTransport = "rsa"
	// TransportECC is ECDH-ES key agreement followed by AES key wrap.
	TransportECC KeyTransport = "ecc"
)

// Recipient is one party able to decrypt a container.
type Recipient struct {
	// CommonName is the subject CN of the recipient certificate.
	CommonName string `json:"commonName" yaml:"commonName"`
	// Certificate is the DER encoding as found in the container.
	Certificate []byte `json:"certificate" yaml:"certificate"`
	// KeyName is the optional Recipient attribute of the EncryptedKey.
	KeyName string `json:"keyName,omitempty" yaml:"keyName,omitempty"`
	// Transport is rsa or ecc.
	Transport KeyTransport `json:"transport" yaml:"transport"`
	// Algorithm is the EncryptedKey EncryptionMethod URI.
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

// X509 parses Certificate.
func (r Recipient) X509() (*x509.Certificate, error) {
	return DecodeCertificate(r.Certificate)
}

var oidCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}

// commonName returns the subject CN. Multi-valued RDNs that the standard
// library does not fold into Subject.CommonName are searched as well.
func commonName(cert *x509.Certificate) string {
	if cn := strings.TrimSpace(cert.Subject.CommonName); cn != "" {
		return cn
	}
	for _, atv := range cert.Subject.Names {
		if atv.Type.Equal(oidCommonName) {
			if s, ok := atv.Value.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// recipients resolves every EncryptedKey of c in document order. Any entry
// that cannot be resolved fails the whole call.
func (p *Parser) recipients(c *container) ([]Recipient, error) {
	keys := c.data.KeyInfo.EncryptedKeys
	out := make([]Recipient, 0, len(keys))

	for i, ek := range keys {
		r, err := p.recipient(c.format, ek)
		if err != nil {
			err.Message = fmt.Sprintf("recipient %d: %s", i, err.Message)
			return nil, err
		}
		if ek.Recipient != "" && ek.Recipient != r.CommonName {
			p.logger.Debug("recipient hint differs from certificate CN",
				zap.Int("index", i),
				zap.String("hint", ek.Recipient),
				zap.String("cn", r.CommonName))
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Parser) recipient(format Format, ek *xmlenc.EncryptedKey) (Recipient, *ParseError) {
	r := Recipient{
		KeyName:   ek.Recipient,
		Algorithm: ek.Algorithm(),
	}

	switch {
	case ek.KeyInfo != nil && ek.KeyInfo.X509Data != nil:
		r.Transport = TransportRSA
		if r.Algorithm != "" && !xmlenc.IsKeyTransport(r.Algorithm) {
			return r, newError(CodeUnrecognizedFormat, nil, "certificate recipient with key algorithm %q", r.Algorithm)
		}
	case ek.KeyInfo != nil && ek.KeyInfo.AgreementMethod != nil:
		if format == FormatLegacy {
			return r, newError(CodeUnrecognizedFormat, nil, "key agreement recipient in a 1.0 container")
		}
		r.Transport = TransportECC
	default:
		return r, newError(CodeMissingElement, nil, "no recipient certificate")
	}
	der, ok := ek.Certificate()
	if !ok {
		return r, newError(CodeMissingElement, nil, "empty recipient certificate")
	}

	cert, err := p.opts.decodeCert(der)
	if err != nil {
		return r, newError(CodeInvalidCertificate, err, "certificate cannot be decoded")
	}
	if cert == nil {
		return r, newError(CodeInvalidCertificate, nil, "certificate cannot be decoded")
	}
	r.CommonName = commonName(cert)
	if r.CommonName == "" {
		return r, newError(CodeInvalidCertificate, nil, "certificate subject has no common name")
	}
	r.Certificate = der
	return r, nil
}
