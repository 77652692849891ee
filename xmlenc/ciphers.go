package xmlenc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrKeyUnwrap is returned when a wrapped key fails its integrity check.
var ErrKeyUnwrap = errors.New("xmlenc: wrapped key integrity check failed")

// kwIV is the RFC 3394 default initial value.
var kwIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

func kwCipher(kek []byte) (cipher.Block, error) {
	switch len(kek) {
	case 16, 24, 32:
		return aes.NewCipher(kek)
	}
	return nil, fmt.Errorf("xmlenc: key encryption key is %d bytes", len(kek))
}

// AESKeyWrap wraps key under kek as in RFC 3394. key must be at least two
// 64-bit blocks long.
func AESKeyWrap(kek, key []byte) ([]byte, error) {
	if len(key) < 16 || len(key)%8 != 0 {
		return nil, fmt.Errorf("xmlenc: cannot wrap a %d byte key", len(key))
	}
	block, err := kwCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(key) / 8
	out := make([]byte, 8+len(key))
	copy(out, kwIV[:])
	copy(out[8:], key)

	var b [16]byte
	for j := 0; j < 6; j++ {
		for i := 1; i <= n; i++ {
			copy(b[:8], out[:8])
			copy(b[8:], out[i*8:i*8+8])
			block.Encrypt(b[:], b[:])
			binary.BigEndian.PutUint64(out[:8], binary.BigEndian.Uint64(b[:8])^uint64(n*j+i))
			copy(out[i*8:], b[8:])
		}
	}
	return out, nil
}

// AESKeyUnwrap reverses AESKeyWrap and returns ErrKeyUnwrap if the
// recovered initial value does not match.
func AESKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, fmt.Errorf("xmlenc: wrapped key is %d bytes", len(wrapped))
	}
	block, err := kwCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	a := binary.BigEndian.Uint64(wrapped[:8])
	key := make([]byte, n*8)
	copy(key, wrapped[8:])

	var b [16]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			binary.BigEndian.PutUint64(b[:8], a^uint64(n*j+i))
			copy(b[8:], key[(i-1)*8:i*8])
			block.Decrypt(b[:], b[:])
			a = binary.BigEndian.Uint64(b[:8])
			copy(key[(i-1)*8:], b[8:])
		}
	}

	var iv [8]byte
	binary.BigEndian.PutUint64(iv[:], a)
	if subtle.ConstantTimeCompare(iv[:], kwIV[:]) != 1 {
		return nil, ErrKeyUnwrap
	}
	return key, nil
}

// AESGCMEncrypt seals plaintext under key. The result is nonce, ciphertext
// and tag concatenated, the CipherValue layout of the GCM algorithms.
func AESGCMEncrypt(key, plaintext, additionalData []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("xmlenc: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, additionalData), nil
}

// AESGCMDecrypt opens a value produced by AESGCMEncrypt.
func AESGCMDecrypt(key, sealed, additionalData []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("xmlenc: GCM value is %d bytes", len(sealed))
	}
	nonce, rest := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, rest, additionalData)
	if err != nil {
		return nil, fmt.Errorf("xmlenc: GCM open: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("xmlenc: %w", err)
	}
	return cipher.NewGCM(block)
}

// AESCBCEncrypt encrypts plaintext under key with PKCS#7 padding. The random
// IV is prepended to the result.
func AESCBCEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("xmlenc: %w", err)
	}
	bs := block.BlockSize()
	pad := bs - len(plaintext)%bs

	out := make([]byte, bs+len(plaintext)+pad)
	if _, err := rand.Read(out[:bs]); err != nil {
		return nil, fmt.Errorf("xmlenc: IV: %w", err)
	}
	copy(out[bs:], plaintext)
	for i := bs + len(plaintext); i < len(out); i++ {
		out[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, out[:bs]).CryptBlocks(out[bs:], out[bs:])
	return out, nil
}

// AESCBCDecrypt decrypts a value produced by AESCBCEncrypt and strips its
// padding.
func AESCBCDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("xmlenc: %w", err)
	}
	bs := block.BlockSize()
	if len(data) < 2*bs || len(data)%bs != 0 {
		return nil, fmt.Errorf("xmlenc: CBC value is %d bytes", len(data))
	}

	plaintext := make([]byte, len(data)-bs)
	cipher.NewCBCDecrypter(block, data[:bs]).CryptBlocks(plaintext, data[bs:])

	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > bs {
		return nil, errors.New("xmlenc: bad CBC padding")
	}
	for _, c := range plaintext[len(plaintext)-pad:] {
		if int(c) != pad {
			return nil, errors.New("xmlenc: bad CBC padding")
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}
