package keyselect

import (
	"fmt"

	"github.com/gematik/zero-lab/go/pkcs12"

	"github.com/leifj/cdoc"
)

// PKCS12Source reads credentials from a PKCS#12 file. Only certificates with
// a matching private key bag are returned.
type PKCS12Source struct {
	Data     []byte
	Password []byte
}

// Credentials implements Source.
func (s *PKCS12Source) Credentials() ([]Credential, error) {
	bags, err := pkcs12.Decode(s.Data, s.Password)
	if err != nil {
		return nil, fmt.Errorf("decode PKCS#12: %w", err)
	}

	pairs := bags.FindMatchingPairs()
	creds := make([]Credential, 0, len(pairs))
	for _, pair := range pairs {
		cert, err := cdoc.DecodeCertificate(pair.Certificate.Raw)
		if err != nil {
			return nil, fmt.Errorf("certificate %q: %w", pair.Certificate.FriendlyName, err)
		}
		creds = append(creds, Credential{
			Certificate: cert,
			Source:      "pkcs12",
			Label:       pair.Certificate.FriendlyName,
		})
	}
	return creds, nil
}
