package xmlenc

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/binary"
	"fmt"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// ECDHESKeyAgreement performs ephemeral-static ECDH key agreement and
// ConcatKDF key derivation, wrapping the content key with AES key wrap.
type ECDHESKeyAgreement struct {
	// EphemeralPrivateKey is the sender's ephemeral private key (generated during Wrap)
	EphemeralPrivateKey *ecdh.PrivateKey
	// EphemeralPublicKey is the sender's ephemeral public key (included in OriginatorKeyInfo)
	EphemeralPublicKey *ecdh.PublicKey
	// RecipientPublicKey is the recipient's static public key
	RecipientPublicKey *ecdh.PublicKey
	// RecipientPrivateKey is for decryption (only set on recipient side)
	RecipientPrivateKey *ecdh.PrivateKey
	// RecipientCertificate is written to RecipientKeyInfo and used as PartyVInfo
	RecipientCertificate *x509.Certificate
	// DigestMethod selects the ConcatKDF hash, AlgorithmSHA384 if empty
	DigestMethod string
}

// NewECDHESKeyAgreement creates a key agreement for encryption towards the
// holder of cert, whose public key must be ECDSA on a NIST curve. A fresh
// ephemeral key pair is generated on the same curve.
func NewECDHESKeyAgreement(cert *x509.Certificate) (*ECDHESKeyAgreement, error) {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate key is %T, not ECDSA", cert.PublicKey)
	}
	recipient, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("unsupported recipient curve: %w", err)
	}

	ephemeralPrivateKey, err := recipient.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	return &ECDHESKeyAgreement{
		EphemeralPrivateKey:  ephemeralPrivateKey,
		EphemeralPublicKey:   ephemeralPrivateKey.PublicKey(),
		RecipientPublicKey:   recipient,
		RecipientCertificate: cert,
		DigestMethod:         AlgorithmSHA384,
	}, nil
}

// NewECDHESKeyAgreementForDecrypt creates a key agreement instance for decryption.
func NewECDHESKeyAgreementForDecrypt(recipientPrivateKey *ecdh.PrivateKey) *ECDHESKeyAgreement {
	return &ECDHESKeyAgreement{
		RecipientPrivateKey: recipientPrivateKey,
		RecipientPublicKey:  recipientPrivateKey.PublicKey(),
	}
}

func (ka *ECDHESKeyAgreement) sharedSecret() ([]byte, error) {
	switch {
	case ka.EphemeralPrivateKey != nil:
		return ka.EphemeralPrivateKey.ECDH(ka.RecipientPublicKey)
	case ka.RecipientPrivateKey != nil:
		if ka.EphemeralPublicKey == nil {
			return nil, fmt.Errorf("no originator public key")
		}
		return ka.RecipientPrivateKey.ECDH(ka.EphemeralPublicKey)
	default:
		return nil, fmt.Errorf("no private key available for ECDH")
	}
}

// WrapKey wraps a content encryption key (CEK) for the recipient.
func (ka *ECDHESKeyAgreement) WrapKey(cek []byte, wrapAlgorithm string) (*EncryptedKey, error) {
	kekSize := KeySize(wrapAlgorithm)
	if kekSize == 0 || !IsKeyWrap(wrapAlgorithm) {
		return nil, fmt.Errorf("unsupported wrap algorithm: %s", wrapAlgorithm)
	}
	if ka.RecipientCertificate == nil {
		return nil, fmt.Errorf("no recipient certificate")
	}

	digest := ka.DigestMethod
	if digest == "" {
		digest = AlgorithmSHA384
	}
	params := &ConcatKDFParams{
		DigestMethod: digest,
		AlgorithmID:  []byte(wrapAlgorithm),
		PartyUInfo:   ka.EphemeralPublicKey.Bytes(),
		PartyVInfo:   ka.RecipientCertificate.Raw,
	}

	z, err := ka.sharedSecret()
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}
	kek, err := ConcatKDF(z, params, kekSize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	wrappedKey, err := AESKeyWrap(kek, cek)
	if err != nil {
		return nil, fmt.Errorf("key wrap failed: %w", err)
	}

	curve, err := curveURI(ka.RecipientPublicKey.Curve())
	if err != nil {
		return nil, err
	}

	ek := &EncryptedKey{
		EncryptedType: EncryptedType{
			EncryptionMethod: &EncryptionMethod{
				Algorithm: wrapAlgorithm,
			},
			KeyInfo: &KeyInfo{
				AgreementMethod: &AgreementMethod{
					Algorithm: AlgorithmECDHES,
					KeyDerivationMethod: &KeyDerivationMethod{
						Algorithm:       AlgorithmConcatKDF,
						ConcatKDFParams: params,
					},
					OriginatorKeyInfo: &KeyInfo{
						KeyValue: &KeyValue{
							ECKeyValue: &ECKeyValue{
								NamedCurve: curve,
								PublicKey:  ka.EphemeralPublicKey.Bytes(),
							},
						},
					},
					RecipientKeyInfo: &KeyInfo{
						X509Data: &X509Data{X509Certificate: ka.RecipientCertificate.Raw},
					},
				},
			},
			CipherData: &CipherData{
				CipherValue: wrappedKey,
			},
		},
	}

	return ek, nil
}

// UnwrapKey recovers the content encryption key from an EncryptedKey produced
// by WrapKey, using the originator key and KDF parameters it carries.
func (ka *ECDHESKeyAgreement) UnwrapKey(ek *EncryptedKey) ([]byte, error) {
	if ek.CipherData == nil || ek.CipherData.CipherValue == nil {
		return nil, fmt.Errorf("no cipher value in EncryptedKey")
	}
	if ek.KeyInfo == nil || ek.KeyInfo.AgreementMethod == nil {
		return nil, fmt.Errorf("no AgreementMethod in EncryptedKey")
	}
	am := ek.KeyInfo.AgreementMethod
	if am.Algorithm != AlgorithmECDHES {
		return nil, fmt.Errorf("unsupported agreement algorithm: %s", am.Algorithm)
	}
	if am.KeyDerivationMethod == nil || am.KeyDerivationMethod.ConcatKDFParams == nil {
		return nil, fmt.Errorf("no ConcatKDF parameters")
	}
	oki := am.OriginatorKeyInfo
	if oki == nil || oki.KeyValue == nil || oki.KeyValue.ECKeyValue == nil {
		return nil, fmt.Errorf("no originator public key")
	}

	ephemeral, err := ka.RecipientPrivateKey.Curve().NewPublicKey(oki.KeyValue.ECKeyValue.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid originator public key: %w", err)
	}
	ka.EphemeralPublicKey = ephemeral

	wrapAlgorithm := ek.Algorithm()
	kekSize := KeySize(wrapAlgorithm)
	if kekSize == 0 {
		return nil, fmt.Errorf("unsupported wrap algorithm: %s", wrapAlgorithm)
	}

	z, err := ka.sharedSecret()
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}
	kek, err := ConcatKDF(z, am.KeyDerivationMethod.ConcatKDFParams, kekSize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	cek, err := AESKeyUnwrap(kek, ek.CipherData.CipherValue)
	if err != nil {
		return nil, fmt.Errorf("key unwrap failed: %w", err)
	}
	return cek, nil
}

// ConcatKDF derives keyLength bytes from the shared secret z as specified in
// NIST SP 800-56A section 5.8.1, with OtherInfo formed by concatenating
// AlgorithmID, PartyUInfo and PartyVInfo.
func ConcatKDF(z []byte, params *ConcatKDFParams, keyLength int) ([]byte, error) {
	if params == nil {
		return nil, fmt.Errorf("no ConcatKDF parameters")
	}
	h, err := digestHash(params.DigestMethod)
	if err != nil {
		return nil, err
	}
	if keyLength <= 0 {
		return nil, fmt.Errorf("invalid key length %d", keyLength)
	}

	out := make([]byte, 0, keyLength+h.Size())
	var counter [4]byte
	for i := uint32(1); len(out) < keyLength; i++ {
		binary.BigEndian.PutUint32(counter[:], i)
		d := h.New()
		d.Write(counter[:])
		d.Write(z)
		d.Write(params.AlgorithmID)
		d.Write(params.PartyUInfo)
		d.Write(params.PartyVInfo)
		out = d.Sum(out)
	}
	return out[:keyLength], nil
}

func digestHash(uri string) (crypto.Hash, error) {
	switch uri {
	case AlgorithmSHA1:
		return crypto.SHA1, nil
	case AlgorithmSHA256:
		return crypto.SHA256, nil
	case AlgorithmSHA384, "":
		return crypto.SHA384, nil
	case AlgorithmSHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unsupported digest method: %s", uri)
	}
}

func curveURI(c ecdh.Curve) (string, error) {
	switch c {
	case ecdh.P256():
		return CurveP256, nil
	case ecdh.P384():
		return CurveP384, nil
	case ecdh.P521():
		return CurveP521, nil
	default:
		return "", fmt.Errorf("unsupported curve %v", c)
	}
}
