// Package xmlenc models the XML Encryption 1.1 structures carried by an
// encrypted document container (https://www.w3.org/TR/xmlenc-core1/).
//
// Structures are read from a hardened xmlsafe tree and written with etree, so
// the same types serve the parser and the fixture builder. The package also
// carries the symmetric and key agreement primitives needed to produce a
// genuine container.
package xmlenc

// Algorithm URIs for XML Encryption 1.1
const (
	// Namespace URIs
	NamespaceXMLEnc    = "http://www.w3.org/2001/04/xmlenc#"
	NamespaceXMLEnc11  = "http://www.w3.org/2009/xmlenc11#"
	NamespaceXMLDSig   = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXMLDSig11 = "http://www.w3.org/2009/xmldsig11#"

	// Block Encryption Algorithms
	AlgorithmAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgorithmAES192CBC = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	AlgorithmAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgorithmAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgorithmAES192GCM = "http://www.w3.org/2009/xmlenc11#aes192-gcm"
	AlgorithmAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	AlgorithmTripleDES = "http://www.w3.org/2001/04/xmlenc#tripledes-cbc"

	// Key Transport Algorithms
	AlgorithmRSAv15    = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	AlgorithmRSAOAEP   = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	AlgorithmRSAOAEP11 = "http://www.w3.org/2009/xmlenc11#rsa-oaep"

	// Key Wrap Algorithms
	AlgorithmAES128KW    = "http://www.w3.org/2001/04/xmlenc#kw-aes128"
	AlgorithmAES192KW    = "http://www.w3.org/2001/04/xmlenc#kw-aes192"
	AlgorithmAES256KW    = "http://www.w3.org/2001/04/xmlenc#kw-aes256"
	AlgorithmTripleDESKW = "http://www.w3.org/2001/04/xmlenc#kw-tripledes"

	// Key Agreement Algorithms
	AlgorithmDH     = "http://www.w3.org/2001/04/xmlenc#dh"
	AlgorithmDHES   = "http://www.w3.org/2009/xmlenc11#dh-es"
	AlgorithmECDHES = "http://www.w3.org/2009/xmlenc11#ECDH-ES"

	// Key Derivation Algorithms
	AlgorithmConcatKDF = "http://www.w3.org/2009/xmlenc11#ConcatKDF"

	// Digest Algorithms (from XML Signature, used in key derivation)
	AlgorithmSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgorithmSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmSHA384 = "http://www.w3.org/2001/04/xmlenc#sha384"
	AlgorithmSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"

	// Named curves, as urn:oid URIs
	CurveP256 = "urn:oid:1.2.840.10045.3.1.7"
	CurveP384 = "urn:oid:1.3.132.0.34"
	CurveP521 = "urn:oid:1.3.132.0.35"

	// Type URIs
	TypeEncryptedKey = "http://www.w3.org/2001/04/xmlenc#EncryptedKey"
	TypeElement      = "http://www.w3.org/2001/04/xmlenc#Element"
	TypeContent      = "http://www.w3.org/2001/04/xmlenc#Content"
)

// KeySize returns the key size in bytes for the given algorithm URI.
// Returns 0 if the algorithm is not recognized or has variable key size.
func KeySize(algorithm string) int {
	switch algorithm {
	case AlgorithmAES128CBC, AlgorithmAES128GCM, AlgorithmAES128KW:
		return 16
	case AlgorithmAES192CBC, AlgorithmAES192GCM, AlgorithmAES192KW:
		return 24
	case AlgorithmAES256CBC, AlgorithmAES256GCM, AlgorithmAES256KW:
		return 32
	case AlgorithmTripleDES, AlgorithmTripleDESKW:
		return 24 // 3 x 64-bit keys
	default:
		return 0
	}
}

// IsGCM returns true if the algorithm is an AES-GCM variant
func IsGCM(algorithm string) bool {
	switch algorithm {
	case AlgorithmAES128GCM, AlgorithmAES192GCM, AlgorithmAES256GCM:
		return true
	default:
		return false
	}
}

// IsCBC returns true for the chained block modes, AES or triple DES.
func IsCBC(algorithm string) bool {
	switch algorithm {
	case AlgorithmAES128CBC, AlgorithmAES192CBC, AlgorithmAES256CBC, AlgorithmTripleDES:
		return true
	default:
		return false
	}
}

// IsKeyWrap returns true if the algorithm is a key wrap algorithm
func IsKeyWrap(algorithm string) bool {
	switch algorithm {
	case AlgorithmAES128KW, AlgorithmAES192KW, AlgorithmAES256KW, AlgorithmTripleDESKW:
		return true
	default:
		return false
	}
}

// IsKeyTransport returns true for the RSA key transport algorithms.
func IsKeyTransport(algorithm string) bool {
	switch algorithm {
	case AlgorithmRSAv15, AlgorithmRSAOAEP, AlgorithmRSAOAEP11:
		return true
	default:
		return false
	}
}

// IsKeyAgreement returns true if the algorithm is a key agreement algorithm
func IsKeyAgreement(algorithm string) bool {
	switch algorithm {
	case AlgorithmDH, AlgorithmDHES, AlgorithmECDHES:
		return true
	default:
		return false
	}
}
