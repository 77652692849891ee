package xmlenc

import (
	"errors"
	"strings"
	"testing"

	"github.com/leifj/cdoc/basen"
	"github.com/leifj/cdoc/xmlsafe"
)

const handWritten = `<?xml version="1.0" encoding="UTF-8"?>
<x:EncryptedData xmlns:x="http://www.w3.org/2001/04/xmlenc#" MimeType="application/octet-stream">
  <x:EncryptionMethod Algorithm="http://www.w3.org/2009/xmlenc11#aes256-gcm"/>
  <k:KeyInfo xmlns:k="http://www.w3.org/2000/09/xmldsig#">
    <x:EncryptedKey Recipient="first">
      <x:EncryptionMethod Algorithm="http://www.w3.org/2001/04/xmlenc#rsa-1_5"/>
      <k:KeyInfo><k:X509Data><k:X509Certificate>
        QUJD
        REVG
      </k:X509Certificate></k:X509Data></k:KeyInfo>
      <x:CipherData><x:CipherValue>AAEC</x:CipherValue></x:CipherData>
    </x:EncryptedKey>
    <x:EncryptedKey Recipient="second">
      <x:EncryptionMethod Algorithm="http://www.w3.org/2001/04/xmlenc#kw-aes256"/>
      <k:KeyInfo>
        <x:AgreementMethod Algorithm="http://www.w3.org/2009/xmlenc11#ECDH-ES">
          <e:KeyDerivationMethod xmlns:e="http://www.w3.org/2009/xmlenc11#" Algorithm="http://www.w3.org/2009/xmlenc11#ConcatKDF">
            <e:ConcatKDFParams AlgorithmID="00414243" PartyUInfo="00" PartyVInfo="0001">
              <k:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha384"/>
            </e:ConcatKDFParams>
          </e:KeyDerivationMethod>
          <x:OriginatorKeyInfo>
            <k:KeyValue><d:ECKeyValue xmlns:d="http://www.w3.org/2009/xmldsig11#">
              <d:NamedCurve URI="urn:oid:1.3.132.0.34"/>
              <d:PublicKey>BAEC</d:PublicKey>
            </d:ECKeyValue></k:KeyValue>
          </x:OriginatorKeyInfo>
          <x:RecipientKeyInfo>
            <k:X509Data><k:X509Certificate>R0hJ</k:X509Certificate></k:X509Data>
          </x:RecipientKeyInfo>
        </x:AgreementMethod>
      </k:KeyInfo>
      <x:CipherData><x:CipherValue>AAEC</x:CipherValue></x:CipherData>
    </x:EncryptedKey>
  </k:KeyInfo>
  <x:CipherData><x:CipherValue>AAECAwQF</x:CipherValue></x:CipherData>
  <x:EncryptionProperties>
    <x:EncryptionProperty Name="DocumentFormat">ENCDOC-XML|1.1</x:EncryptionProperty>
    <x:EncryptionProperty Name="orig_file">a.txt|5|text/plain|D0</x:EncryptionProperty>
    <x:EncryptionProperty Name="orig_file">b.txt|6|text/plain|D1</x:EncryptionProperty>
  </x:EncryptionProperties>
</x:EncryptedData>`

func mustRoot(t *testing.T, xml string) xmlsafe.Element {
	t.Helper()
	doc, err := xmlsafe.ParseBytes([]byte(xml))
	if err != nil {
		t.Fatalf("xmlsafe: %v", err)
	}
	return doc.Root()
}

func TestParseEncryptedDataAnyPrefix(t *testing.T) {
	ed, err := ParseEncryptedData(mustRoot(t, handWritten))
	if err != nil {
		t.Fatalf("ParseEncryptedData: %v", err)
	}

	if ed.Algorithm() != AlgorithmAES256GCM {
		t.Errorf("algorithm = %q", ed.Algorithm())
	}
	if string(ed.CipherData.CipherValue) != "\x00\x01\x02\x03\x04\x05" {
		t.Errorf("CipherValue = %x", ed.CipherData.CipherValue)
	}

	keys := ed.KeyInfo.EncryptedKeys
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if cert, ok := keys[0].Certificate(); !ok || string(cert) != "ABCDEF" {
		t.Errorf("first certificate = %q, %v", cert, ok)
	}
	if cert, ok := keys[1].Certificate(); !ok || string(cert) != "GHI" {
		t.Errorf("second certificate = %q, %v", cert, ok)
	}

	am := keys[1].KeyInfo.AgreementMethod
	p := am.KeyDerivationMethod.ConcatKDFParams
	if p.DigestMethod != AlgorithmSHA384 || string(p.AlgorithmID) != "ABC" || len(p.PartyUInfo) != 0 || string(p.PartyVInfo) != "\x01" {
		t.Errorf("unexpected ConcatKDFParams %+v", p)
	}
	ec := am.OriginatorKeyInfo.KeyValue.ECKeyValue
	if ec.NamedCurve != CurveP384 || string(ec.PublicKey) != "\x04\x01\x02" {
		t.Errorf("unexpected ECKeyValue %+v", ec)
	}

	props := ed.EncryptionProperties
	if f, ok := props.Property("DocumentFormat"); !ok || f.Value != "ENCDOC-XML|1.1" {
		t.Errorf("DocumentFormat = %q, %v", f.Value, ok)
	}
	files := props.All("orig_file")
	if len(files) != 2 || files[1].Value != "b.txt|6|text/plain|D1" || files[1].Element.IsZero() {
		t.Errorf("unexpected orig_file properties %+v", files)
	}
	if _, ok := props.Property("Filename"); ok {
		t.Error("unexpected Filename property")
	}
}

func TestParseEncryptedDataErrors(t *testing.T) {
	testCases := []struct {
		name       string
		xml        string
		malformed  bool
		structural bool
	}{
		{
			name:       "wrong root namespace",
			xml:        `<EncryptedData xmlns="urn:other"/>`,
			structural: true,
		},
		{
			name:       "method without algorithm",
			xml:        `<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><EncryptionMethod/></EncryptedData>`,
			structural: true,
		},
		{
			name:       "empty cipher data",
			xml:        `<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><CipherData/></EncryptedData>`,
			structural: true,
		},
		{
			name:      "bad cipher value",
			xml:       `<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><CipherData><CipherValue>QQ=A</CipherValue></CipherData></EncryptedData>`,
			malformed: true,
		},
		{
			name:      "bad certificate text",
			xml:       `<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><KeyInfo><EncryptedKey><KeyInfo><X509Data><X509Certificate>!!</X509Certificate></X509Data></KeyInfo></EncryptedKey></KeyInfo></EncryptedData>`,
			malformed: true,
		},
		{
			name:       "partial bit string",
			xml:        `<EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#"><KeyInfo><EncryptedKey><KeyInfo><AgreementMethod><KeyDerivationMethod><ConcatKDFParams AlgorithmID="0141"/></KeyDerivationMethod></AgreementMethod></KeyInfo></EncryptedKey></KeyInfo></EncryptedData>`,
			structural: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEncryptedData(mustRoot(t, tc.xml))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, basen.ErrMalformed); got != tc.malformed {
				t.Errorf("errors.Is(ErrMalformed) = %v: %v", got, err)
			}
			if got := errors.Is(err, ErrStructure); got != tc.structural {
				t.Errorf("errors.Is(ErrStructure) = %v: %v", got, err)
			}
		})
	}
}

func TestSerializedPrefixes(t *testing.T) {
	ed := &EncryptedData{EncryptedType: EncryptedType{
		EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128CBC},
		KeyInfo: &KeyInfo{EncryptedKeys: []*EncryptedKey{{
			EncryptedType: EncryptedType{
				EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmRSAv15},
				KeyInfo:          &KeyInfo{X509Data: &X509Data{X509Certificate: []byte("cert")}},
				CipherData:       &CipherData{CipherValue: []byte{1}},
			},
			Recipient: "Mari",
		}}},
		CipherData: &CipherData{CipherValue: []byte{2}},
		EncryptionProperties: &EncryptionProperties{Properties: []EncryptionProperty{
			{Name: "Filename", Value: "x.txt"},
		}},
	}}

	s, err := NewEncryptedDataDocument(ed).WriteToString()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`<denc:EncryptedData xmlns:denc="http://www.w3.org/2001/04/xmlenc#"`,
		`<ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">`,
		`<denc:EncryptedKey Recipient="Mari">`,
		`<denc:EncryptionProperty Name="Filename">x.txt</denc:EncryptionProperty>`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("serialized document lacks %s:\n%s", want, s)
		}
	}

	parsed := reparse(t, ed)
	if parsed.KeyInfo.EncryptedKeys[0].Recipient != "Mari" {
		t.Error("Recipient lost in round trip")
	}
}
