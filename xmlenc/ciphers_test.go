package xmlenc_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/beevik/etree"

	"github.com/leifj/cdoc/basen"
	"github.com/leifj/cdoc/cdoctest"
	"github.com/leifj/cdoc/xmlenc"
)

func TestContainerRoundTripThroughCiphers(t *testing.T) {
	ec, err := cdoctest.NewECIdentity("TESTNUMBER,ECC,14212128029")
	if err != nil {
		t.Fatal(err)
	}
	rsaID, err := cdoctest.NewRSAIdentity("legacy")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		container *cdoctest.Container
		id        *cdoctest.Identity
	}{
		{"GCM with a wrapped key", &cdoctest.Container{Recipients: []*cdoctest.Identity{ec}}, ec},
		{"GCM with key transport", &cdoctest.Container{Recipients: []*cdoctest.Identity{rsaID}}, rsaID},
		{"CBC with key transport", &cdoctest.Container{Version: cdoctest.Version10, Recipients: []*cdoctest.Identity{rsaID}}, rsaID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := cdoctest.Lorem("lorem1.txt")
			tt.container.Files = []cdoctest.File{file}
			data, err := tt.container.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			plain, err := tt.id.Decrypt(data)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(plain, file.Data) {
				t.Errorf("Decrypt = %q, want %q", plain, file.Data)
			}
		})
	}
}

func TestContainerWithCorruptWrappedKey(t *testing.T) {
	ec, err := cdoctest.NewECIdentity("TESTNUMBER,ECC,14212128029")
	if err != nil {
		t.Fatal(err)
	}
	data, err := (&cdoctest.Container{
		Files:      []cdoctest.File{cdoctest.Lorem("lorem1.txt")},
		Recipients: []*cdoctest.Identity{ec},
		Mutate: func(doc *etree.Document) {
			cv := doc.FindElement(".//EncryptedKey/CipherData/CipherValue")
			cv.SetText(basen.StdEncoding.EncodeToString(make([]byte, 40)))
		},
	}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := ec.Decrypt(data); !errors.Is(err, xmlenc.ErrKeyUnwrap) {
		t.Fatalf("Decrypt error = %v, want ErrKeyUnwrap", err)
	}
}

func TestAESKeyWrapKnownAnswer(t *testing.T) {
	// RFC 3394 section 4.1
	kek, _ := hex.DecodeString("000102030405060708090A0B0C0D0E0F")
	key, _ := hex.DecodeString("00112233445566778899AABBCCDDEEFF")
	want, _ := hex.DecodeString("1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5")

	wrapped, err := xmlenc.AESKeyWrap(kek, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wrapped, want) {
		t.Fatalf("AESKeyWrap = %X, want %X", wrapped, want)
	}
	unwrapped, err := xmlenc.AESKeyUnwrap(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(unwrapped, key) {
		t.Fatalf("AESKeyUnwrap = %X, want %X", unwrapped, key)
	}

	wrapped[len(wrapped)-1] ^= 1
	if _, err := xmlenc.AESKeyUnwrap(kek, wrapped); !errors.Is(err, xmlenc.ErrKeyUnwrap) {
		t.Errorf("tampered unwrap error = %v, want ErrKeyUnwrap", err)
	}
}

func TestCipherInputChecks(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 16)
	if _, err := xmlenc.AESKeyWrap(make([]byte, 15), key); err == nil {
		t.Error("short KEK accepted")
	}
	if _, err := xmlenc.AESKeyWrap(key, key[:12]); err == nil {
		t.Error("unaligned key accepted")
	}
	if _, err := xmlenc.AESKeyUnwrap(key, make([]byte, 16)); err == nil {
		t.Error("short wrapped key accepted")
	}
	if _, err := xmlenc.AESGCMDecrypt(key, make([]byte, 20), nil); err == nil {
		t.Error("short GCM value accepted")
	}
	if _, err := xmlenc.AESCBCDecrypt(key, make([]byte, 24)); err == nil {
		t.Error("unaligned CBC value accepted")
	}

	sealed, err := xmlenc.AESGCMEncrypt(key, []byte("payload"), nil)
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 1
	if _, err := xmlenc.AESGCMDecrypt(key, sealed, nil); err == nil {
		t.Error("tampered GCM value opened")
	}
}
