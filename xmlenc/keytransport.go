package xmlenc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
)

// RSAKeyTransport encrypts the content key directly to an RSA recipient.
type RSAKeyTransport struct {
	// Certificate identifies the recipient and is written to KeyInfo/X509Data
	Certificate *x509.Certificate
	// PrivateKey is for decryption (only set on recipient side)
	PrivateKey *rsa.PrivateKey
	// Algorithm is AlgorithmRSAv15 (default) or AlgorithmRSAOAEP
	Algorithm string
	// KeyName is the optional EncryptedKey Recipient hint
	KeyName string
}

// NewRSAKeyTransport creates a transport towards the holder of cert.
func NewRSAKeyTransport(cert *x509.Certificate) (*RSAKeyTransport, error) {
	if _, ok := cert.PublicKey.(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("certificate key is %T, not RSA", cert.PublicKey)
	}
	return &RSAKeyTransport{Certificate: cert, Algorithm: AlgorithmRSAv15}, nil
}

func (kt *RSAKeyTransport) algorithm() string {
	if kt.Algorithm == "" {
		return AlgorithmRSAv15
	}
	return kt.Algorithm
}

// WrapKey encrypts cek with the recipient's public key. The wrap algorithm
// argument is ignored; RSA transport does not use a key encryption key.
func (kt *RSAKeyTransport) WrapKey(cek []byte, _ string) (*EncryptedKey, error) {
	pub, ok := kt.Certificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate key is %T, not RSA", kt.Certificate.PublicKey)
	}

	var wrapped []byte
	var err error
	switch kt.algorithm() {
	case AlgorithmRSAv15:
		wrapped, err = rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	case AlgorithmRSAOAEP:
		wrapped, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, cek, nil)
	default:
		return nil, fmt.Errorf("unsupported key transport algorithm: %s", kt.Algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("RSA encryption failed: %w", err)
	}

	em := &EncryptionMethod{Algorithm: kt.algorithm()}
	if em.Algorithm == AlgorithmRSAOAEP {
		em.DigestMethod = AlgorithmSHA1
	}
	return &EncryptedKey{
		EncryptedType: EncryptedType{
			EncryptionMethod: em,
			KeyInfo: &KeyInfo{
				X509Data: &X509Data{X509Certificate: kt.Certificate.Raw},
			},
			CipherData: &CipherData{CipherValue: wrapped},
		},
		Recipient: kt.KeyName,
	}, nil
}

// UnwrapKey decrypts the content key with PrivateKey.
func (kt *RSAKeyTransport) UnwrapKey(ek *EncryptedKey) ([]byte, error) {
	if kt.PrivateKey == nil {
		return nil, fmt.Errorf("no private key available")
	}
	if ek.CipherData == nil || ek.CipherData.CipherValue == nil {
		return nil, fmt.Errorf("no cipher value in EncryptedKey")
	}
	switch alg := ek.Algorithm(); alg {
	case AlgorithmRSAv15:
		return rsa.DecryptPKCS1v15(nil, kt.PrivateKey, ek.CipherData.CipherValue)
	case AlgorithmRSAOAEP:
		return rsa.DecryptOAEP(sha1.New(), nil, kt.PrivateKey, ek.CipherData.CipherValue, nil)
	default:
		return nil, fmt.Errorf("unsupported key transport algorithm: %s", alg)
	}
}
