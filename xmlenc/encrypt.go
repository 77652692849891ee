package xmlenc

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// Encryptor encrypts a payload once under a fresh content key and wraps that
// key for every recipient.
type Encryptor struct {
	// Algorithm is the content encryption algorithm (e.g., AlgorithmAES256GCM)
	Algorithm string
	// Recipients receive one EncryptedKey each, in order
	Recipients []KeyWrapper
}

// KeyWrapper interface for key wrapping mechanisms
type KeyWrapper interface {
	// WrapKey wraps a content encryption key
	WrapKey(cek []byte, wrapAlgorithm string) (*EncryptedKey, error)
}

// NewEncryptor creates a new Encryptor with the specified algorithm and recipients
func NewEncryptor(algorithm string, recipients ...KeyWrapper) *Encryptor {
	return &Encryptor{
		Algorithm:  algorithm,
		Recipients: recipients,
	}
}

// Encrypt encrypts plaintext and returns the EncryptedData with one
// EncryptedKey per recipient in its KeyInfo.
func (e *Encryptor) Encrypt(plaintext []byte, mimeType string) (*EncryptedData, error) {
	if !IsGCM(e.Algorithm) && !IsCBC(e.Algorithm) {
		return nil, fmt.Errorf("unsupported encryption algorithm: %s", e.Algorithm)
	}
	if e.Algorithm == AlgorithmTripleDES {
		return nil, fmt.Errorf("encryption with %s is not supported", e.Algorithm)
	}
	if len(e.Recipients) == 0 {
		return nil, errors.New("no recipients")
	}

	cek := make([]byte, KeySize(e.Algorithm))
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("failed to generate CEK: %w", err)
	}

	var ciphertext []byte
	var err error
	if IsGCM(e.Algorithm) {
		ciphertext, err = AESGCMEncrypt(cek, plaintext, nil)
	} else {
		ciphertext, err = AESCBCEncrypt(cek, plaintext)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}

	keyInfo := &KeyInfo{}
	wrapAlg := KeyWrapAlgorithmForContentAlgorithm(e.Algorithm)
	for i, r := range e.Recipients {
		encKey, err := r.WrapKey(cek, wrapAlg)
		if err != nil {
			return nil, fmt.Errorf("key wrapping for recipient %d failed: %w", i, err)
		}
		keyInfo.EncryptedKeys = append(keyInfo.EncryptedKeys, encKey)
	}

	ed := &EncryptedData{
		EncryptedType: EncryptedType{
			MimeType: mimeType,
			EncryptionMethod: &EncryptionMethod{
				Algorithm: e.Algorithm,
			},
			KeyInfo: keyInfo,
			CipherData: &CipherData{
				CipherValue: ciphertext,
			},
		},
	}

	return ed, nil
}

// Decryptor provides XML Decryption operations
type Decryptor struct {
	// KeyUnwrapper handles key decryption
	KeyUnwrapper KeyUnwrapper
}

// KeyUnwrapper interface for key unwrapping mechanisms
type KeyUnwrapper interface {
	// UnwrapKey unwraps a content encryption key from EncryptedKey
	UnwrapKey(ek *EncryptedKey) ([]byte, error)
}

// NewDecryptor creates a new Decryptor with the specified key unwrapper
func NewDecryptor(keyUnwrapper KeyUnwrapper) *Decryptor {
	return &Decryptor{
		KeyUnwrapper: keyUnwrapper,
	}
}

// DecryptEncryptedData decrypts ed using the content key recovered from
// ek, which must be one of ed's recipient entries.
func (d *Decryptor) DecryptEncryptedData(ed *EncryptedData, ek *EncryptedKey) ([]byte, error) {
	if ed.CipherData == nil || ed.CipherData.CipherValue == nil {
		return nil, fmt.Errorf("no cipher data")
	}
	if ek == nil {
		return nil, fmt.Errorf("no key information available")
	}

	cek, err := d.KeyUnwrapper.UnwrapKey(ek)
	if err != nil {
		return nil, fmt.Errorf("key unwrapping failed: %w", err)
	}

	var plaintext []byte
	algorithm := ed.Algorithm()
	switch {
	case IsGCM(algorithm):
		plaintext, err = AESGCMDecrypt(cek, ed.CipherData.CipherValue, nil)
	case IsCBC(algorithm) && algorithm != AlgorithmTripleDES:
		plaintext, err = AESCBCDecrypt(cek, ed.CipherData.CipherValue)
	default:
		return nil, fmt.Errorf("unsupported encryption algorithm: %s", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

// KeyWrapAlgorithmForContentAlgorithm returns the appropriate key wrap algorithm
// for a given content encryption algorithm based on key size.
func KeyWrapAlgorithmForContentAlgorithm(contentAlgorithm string) string {
	switch KeySize(contentAlgorithm) {
	case 16:
		return AlgorithmAES128KW
	case 24:
		return AlgorithmAES192KW
	case 32:
		return AlgorithmAES256KW
	default:
		return AlgorithmAES128KW
	}
}
