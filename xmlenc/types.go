package xmlenc

import (
	"github.com/beevik/etree"
	"github.com/leifj/cdoc/xmlsafe"
)

// EncryptedType is the abstract base type for EncryptedData and EncryptedKey
// as defined in the XML Encryption specification.
type EncryptedType struct {
	ID                   string
	Type                 string // TypeElement, TypeContent, or custom URI
	MimeType             string
	Encoding             string
	EncryptionMethod     *EncryptionMethod
	KeyInfo              *KeyInfo
	CipherData           *CipherData
	EncryptionProperties *EncryptionProperties
}

// EncryptedData represents the xenc:EncryptedData element
// which contains encrypted content (either element or content encryption).
type EncryptedData struct {
	EncryptedType
}

// EncryptedKey represents the xenc:EncryptedKey element
// which contains an encrypted key wrapped for a specific recipient.
type EncryptedKey struct {
	EncryptedType
	Recipient      string // Optional hint to the recipient
	CarriedKeyName string // Name for the key being carried
}

// EncryptionMethod specifies the algorithm used for encryption.
type EncryptionMethod struct {
	Algorithm    string // URI of the encryption algorithm
	KeySize      int    // Optional explicit key size
	DigestMethod string // Digest algorithm for RSA-OAEP
	MGFAlgorithm string // MGF algorithm for RSA-OAEP 1.1
}

// CipherData contains either CipherValue (inline) or CipherReference (external)
type CipherData struct {
	CipherValue     []byte           // Base64-decoded encrypted content
	CipherReference *CipherReference // URI reference to encrypted content
}

// CipherReference points to external encrypted data
type CipherReference struct {
	URI string
}

// KeyInfo contains key identification information.
// This is compatible with ds:KeyInfo from XML Signatures. A container's
// top-level KeyInfo holds one EncryptedKey per recipient.
type KeyInfo struct {
	ID              string
	KeyName         string
	EncryptedKeys   []*EncryptedKey
	AgreementMethod *AgreementMethod
	KeyValue        *KeyValue
	X509Data        *X509Data
}

// KeyValue contains a public key value
type KeyValue struct {
	ECKeyValue *ECKeyValue
}

// ECKeyValue contains EC public key parameters
type ECKeyValue struct {
	NamedCurve string // urn:oid URI of the curve
	PublicKey  []byte // uncompressed point
}

// X509Data contains X.509 certificate data
type X509Data struct {
	X509Certificate []byte // DER-encoded certificate
}

// AgreementMethod represents xenc:AgreementMethod for key agreement
type AgreementMethod struct {
	Algorithm           string // e.g. AlgorithmECDHES
	KeyDerivationMethod *KeyDerivationMethod
	OriginatorKeyInfo   *KeyInfo
	RecipientKeyInfo    *KeyInfo
}

// KeyDerivationMethod specifies how to derive the key encryption key
type KeyDerivationMethod struct {
	Algorithm       string // AlgorithmConcatKDF
	ConcatKDFParams *ConcatKDFParams
}

// ConcatKDFParams contains parameters for Concat KDF (NIST SP 800-56A).
// The byte fields are the raw values, without the leading pad-bits octet
// used by the XML bit string encoding.
type ConcatKDFParams struct {
	DigestMethod string
	AlgorithmID  []byte
	PartyUInfo   []byte
	PartyVInfo   []byte
}

// EncryptionProperties represents xenc:EncryptionProperties, the container's
// metadata block.
type EncryptionProperties struct {
	ID         string
	Properties []EncryptionProperty
}

// EncryptionProperty is one xenc:EncryptionProperty. Value is its direct
// character data. Element is set when the property was parsed and gives
// access to any child markup. Content, when non-nil, is written as the
// property's child element on serialization.
type EncryptionProperty struct {
	ID      string
	Name    string
	Value   string
	Element xmlsafe.Element
	Content *etree.Element
}

// Certificate returns the DER certificate identifying the recipient of ek,
// taken from KeyInfo/X509Data for key transport or from
// KeyInfo/AgreementMethod/RecipientKeyInfo/X509Data for key agreement.
func (ek *EncryptedKey) Certificate() ([]byte, bool) {
	if ek == nil || ek.KeyInfo == nil {
		return nil, false
	}
	ki := ek.KeyInfo
	if ki.X509Data != nil && len(ki.X509Data.X509Certificate) > 0 {
		return ki.X509Data.X509Certificate, true
	}
	if am := ki.AgreementMethod; am != nil && am.RecipientKeyInfo != nil {
		if x := am.RecipientKeyInfo.X509Data; x != nil && len(x.X509Certificate) > 0 {
			return x.X509Certificate, true
		}
	}
	return nil, false
}

// Algorithm returns the EncryptionMethod algorithm URI, or "" if absent.
func (et *EncryptedType) Algorithm() string {
	if et == nil || et.EncryptionMethod == nil {
		return ""
	}
	return et.EncryptionMethod.Algorithm
}

// Property returns the first property with the given Name.
func (ep *EncryptionProperties) Property(name string) (EncryptionProperty, bool) {
	if ep == nil {
		return EncryptionProperty{}, false
	}
	for _, p := range ep.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return EncryptionProperty{}, false
}

// All returns every property with the given Name, in document order.
func (ep *EncryptionProperties) All(name string) []EncryptionProperty {
	if ep == nil {
		return nil
	}
	var out []EncryptionProperty
	for _, p := range ep.Properties {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}
