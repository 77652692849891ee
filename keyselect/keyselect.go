// Package keyselect finds which of the caller's own certificates a container
// is addressed to. Certificates come from PKCS#12 files or PKCS#11 tokens
// and are matched against container recipients by their DER encoding.
package keyselect

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/leifj/cdoc"
)

// ErrNoMatch is returned by Select when no credential matches any recipient.
var ErrNoMatch = errors.New("keyselect: no credential matches a recipient")

// Credential is a certificate with a private key available to the caller.
type Credential struct {
	Certificate *x509.Certificate
	// Source names where the credential came from, e.g. "pkcs12" or "pkcs11"
	Source string
	// Label is the friendly name or token label, if any
	Label string
}

// Source lists credentials.
type Source interface {
	Credentials() ([]Credential, error)
}

// Match pairs a container recipient with the caller's credential for it.
type Match struct {
	// Index is the recipient's position in the container
	Index      int
	Recipient  cdoc.Recipient
	Credential Credential
}

// Select returns every recipient for which one of the sources holds the
// certificate, in recipient order.
func Select(recipients []cdoc.Recipient, sources ...Source) ([]Match, error) {
	var creds []Credential
	for i, s := range sources {
		c, err := s.Credentials()
		if err != nil {
			return nil, fmt.Errorf("keyselect: source %d: %w", i, err)
		}
		creds = append(creds, c...)
	}

	var matches []Match
	for i, r := range recipients {
		cred, ok := lo.Find(creds, func(c Credential) bool {
			return c.Certificate != nil && bytes.Equal(c.Certificate.Raw, r.Certificate)
		})
		if ok {
			matches = append(matches, Match{Index: i, Recipient: r, Credential: cred})
		}
	}
	if len(matches) == 0 {
		return nil, ErrNoMatch
	}
	return matches, nil
}
