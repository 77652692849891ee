package cdoc

import (
	"crypto/x509"

	"github.com/gematik/zero-lab/go/brainpool"
	"go.uber.org/zap"

	"github.com/leifj/cdoc/xmlsafe"
)

// Option configures a Parser.
type Option func(*parserOptions)

// CertificateDecoder turns DER bytes into a certificate.
type CertificateDecoder func(der []byte) (*x509.Certificate, error)

// DefaultMaxDocumentSize is the input ceiling when none is configured.
const DefaultMaxDocumentSize = xmlsafe.DefaultMaxSize

type parserOptions struct {
	logger     *zap.Logger
	metrics    MetricsRecorder
	maxSize    int64
	decodeCert CertificateDecoder
}

// DecodeCertificate is the default CertificateDecoder. Certificates the
// standard library refuses, such as those on brainpool curves, are retried
// with the brainpool-aware parser.
func DecodeCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err == nil {
		return cert, nil
	}
	if bpCert, bpErr := brainpool.ParseCertificate(der); bpErr == nil {
		return bpCert, nil
	}
	return nil, err
}

func defaultOptions() parserOptions {
	return parserOptions{
		logger:     zap.NewNop(),
		metrics:    NoopMetricsRecorder{},
		maxSize:    DefaultMaxDocumentSize,
		decodeCert: DecodeCertificate,
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *parserOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the recorder notified after every call.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *parserOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithMaxDocumentSize bounds the number of bytes read from a container.
// Larger input is refused. Values of zero or less restore the default.
func WithMaxDocumentSize(n int64) Option {
	return func(o *parserOptions) {
		if n <= 0 {
			n = DefaultMaxDocumentSize
		}
		o.maxSize = n
	}
}

// WithCertificateDecoder replaces the recipient certificate decoder. The
// default accepts RSA, NIST and brainpool curve certificates.
func WithCertificateDecoder(d CertificateDecoder) Option {
	return func(o *parserOptions) {
		if d != nil {
			o.decodeCert = d
		}
	}
}
