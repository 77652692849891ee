package keyselect

import (
	"errors"
	"fmt"

	"github.com/ThalesGroup/crypto11"

	"github.com/leifj/cdoc"
)

// PKCS11Source reads the certificates paired with a private key on a
// PKCS#11 token, such as an ID card.
type PKCS11Source struct {
	Config *crypto11.Config
}

// Credentials implements Source.
func (s *PKCS11Source) Credentials() ([]Credential, error) {
	if s.Config == nil {
		return nil, errors.New("no PKCS#11 configuration")
	}
	ctx, err := crypto11.Configure(s.Config)
	if err != nil {
		return nil, fmt.Errorf("open PKCS#11 token: %w", err)
	}
	defer ctx.Close()

	certs, err := ctx.FindAllPairedCertificates()
	if err != nil {
		return nil, fmt.Errorf("list token certificates: %w", err)
	}

	creds := make([]Credential, 0, len(certs))
	for _, c := range certs {
		leaf := c.Leaf
		if leaf == nil {
			if len(c.Certificate) == 0 {
				continue
			}
			if leaf, err = cdoc.DecodeCertificate(c.Certificate[0]); err != nil {
				return nil, fmt.Errorf("token certificate: %w", err)
			}
		}
		creds = append(creds, Credential{
			Certificate: leaf,
			Source:      "pkcs11",
			Label:       s.Config.TokenLabel,
		})
	}
	return creds, nil
}
