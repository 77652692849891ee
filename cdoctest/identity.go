package cdoctest

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gematik/zero-lab/go/pkcs12"

	"github.com/leifj/cdoc/xmlenc"
	"github.com/leifj/cdoc/xmlsafe"
)

// Identity is a recipient key pair with a self-signed certificate.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
}

// NewRSAIdentity creates a 2048-bit RSA identity whose certificate subject
// CN is cn.
func NewRSAIdentity(cn string) (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	return NewIdentity(pkix.Name{CommonName: cn}, key)
}

// NewECIdentity creates a P-384 identity whose certificate subject CN is cn.
func NewECIdentity(cn string) (*Identity, error) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate EC key: %w", err)
	}
	return NewIdentity(pkix.Name{CommonName: cn}, key)
}

// NewIdentity self-signs a certificate for subject with key.
func NewIdentity(subject pkix.Name, key crypto.Signer) (*Identity, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageKeyAgreement | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Identity{Certificate: cert, PrivateKey: key}, nil
}

// IsEC reports whether the identity uses key agreement rather than RSA.
func (id *Identity) IsEC() bool {
	_, ok := id.PrivateKey.(*ecdsa.PrivateKey)
	return ok
}

func (id *Identity) keyWrapper() (xmlenc.KeyWrapper, error) {
	switch id.PrivateKey.(type) {
	case *rsa.PrivateKey:
		return xmlenc.NewRSAKeyTransport(id.Certificate)
	case *ecdsa.PrivateKey:
		return xmlenc.NewECDHESKeyAgreement(id.Certificate)
	default:
		return nil, fmt.Errorf("unsupported key type %T", id.PrivateKey)
	}
}

func (id *Identity) keyUnwrapper() (xmlenc.KeyUnwrapper, error) {
	switch k := id.PrivateKey.(type) {
	case *rsa.PrivateKey:
		return &xmlenc.RSAKeyTransport{PrivateKey: k}, nil
	case *ecdsa.PrivateKey:
		ecdhKey, err := k.ECDH()
		if err != nil {
			return nil, err
		}
		return xmlenc.NewECDHESKeyAgreementForDecrypt(ecdhKey), nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", id.PrivateKey)
	}
}

// ErrNotRecipient is returned by Decrypt when the container holds no entry
// for the identity's certificate.
var ErrNotRecipient = errors.New("cdoctest: identity is not a recipient")

// Decrypt recovers the payload of a container addressed to id.
func (id *Identity) Decrypt(container []byte) ([]byte, error) {
	doc, err := xmlsafe.ParseBytes(container)
	if err != nil {
		return nil, err
	}
	ed, err := xmlenc.ParseEncryptedData(doc.Root())
	if err != nil {
		return nil, err
	}
	if ed.KeyInfo == nil {
		return nil, ErrNotRecipient
	}
	unwrapper, err := id.keyUnwrapper()
	if err != nil {
		return nil, err
	}
	for _, ek := range ed.KeyInfo.EncryptedKeys {
		if der, ok := ek.Certificate(); ok && bytes.Equal(der, id.Certificate.Raw) {
			return xmlenc.NewDecryptor(unwrapper).DecryptEncryptedData(ed, ek)
		}
	}
	return nil, ErrNotRecipient
}

// PKCS12 exports the identity as a password protected PKCS#12 file.
func (id *Identity) PKCS12(friendlyName string, password []byte) ([]byte, error) {
	keyDER, err := x509.MarshalPKCS8PrivateKey(id.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	localKeyID := id.Certificate.SubjectKeyId
	if len(localKeyID) == 0 {
		localKeyID = id.Certificate.SerialNumber.Bytes()
	}
	bags := &pkcs12.Bags{
		Certificates: []pkcs12.CertificateBag{{
			Raw:          id.Certificate.Raw,
			FriendlyName: friendlyName,
			LocalKeyID:   localKeyID,
		}},
		PrivateKeys: []pkcs12.PrivateKeyBag{{
			Raw:          keyDER,
			FriendlyName: friendlyName,
			LocalKeyID:   localKeyID,
		}},
	}
	return pkcs12.Encode(bags, password)
}
