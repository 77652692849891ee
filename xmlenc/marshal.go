package xmlenc

import (
	"encoding/hex"
	"strconv"

	"github.com/beevik/etree"
	"github.com/leifj/cdoc/basen"
)

// Prefixes used when serializing. Parsing accepts any prefix.
const (
	PrefixXMLEnc    = "denc"
	PrefixXMLEnc11  = "xenc11"
	PrefixXMLDSig   = "ds"
	PrefixXMLDSig11 = "dsig11"
)

func q(prefix, local string) string {
	return prefix + ":" + local
}

func b64(data []byte) string {
	return basen.PEMEncoding.EncodeToString(data)
}

// bitString encodes a ConcatKDF parameter as hex with a leading zero
// pad-bits octet.
func bitString(data []byte) string {
	return "00" + hex.EncodeToString(data)
}

// ToElement converts EncryptedData to an etree.Element
func (ed *EncryptedData) ToElement() *etree.Element {
	elem := etree.NewElement(q(PrefixXMLEnc, "EncryptedData"))
	elem.CreateAttr("xmlns:"+PrefixXMLEnc, NamespaceXMLEnc)
	ed.appendCommon(elem)
	return elem
}

// ToElement converts EncryptedKey to an etree.Element
func (ek *EncryptedKey) ToElement() *etree.Element {
	elem := etree.NewElement(q(PrefixXMLEnc, "EncryptedKey"))
	elem.CreateAttr("xmlns:"+PrefixXMLEnc, NamespaceXMLEnc)
	ek.appendTo(elem)
	return elem
}

func (ek *EncryptedKey) appendTo(elem *etree.Element) {
	if ek.Recipient != "" {
		elem.CreateAttr("Recipient", ek.Recipient)
	}
	ek.appendCommon(elem)
	if ek.CarriedKeyName != "" {
		elem.CreateElement(q(PrefixXMLEnc, "CarriedKeyName")).SetText(ek.CarriedKeyName)
	}
}

func (et *EncryptedType) appendCommon(elem *etree.Element) {
	if et.ID != "" {
		elem.CreateAttr("Id", et.ID)
	}
	if et.Type != "" {
		elem.CreateAttr("Type", et.Type)
	}
	if et.MimeType != "" {
		elem.CreateAttr("MimeType", et.MimeType)
	}
	if et.Encoding != "" {
		elem.CreateAttr("Encoding", et.Encoding)
	}
	if et.EncryptionMethod != nil {
		et.EncryptionMethod.appendTo(elem)
	}
	if et.KeyInfo != nil {
		et.KeyInfo.appendTo(elem)
	}
	if et.CipherData != nil {
		et.CipherData.appendTo(elem)
	}
	if et.EncryptionProperties != nil {
		et.EncryptionProperties.appendTo(elem)
	}
}

func (em *EncryptionMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement(q(PrefixXMLEnc, "EncryptionMethod"))
	elem.CreateAttr("Algorithm", em.Algorithm)

	if em.KeySize > 0 {
		elem.CreateElement(q(PrefixXMLEnc, "KeySize")).SetText(strconv.Itoa(em.KeySize))
	}
	if em.DigestMethod != "" {
		dm := elem.CreateElement(q(PrefixXMLDSig, "DigestMethod"))
		dm.CreateAttr("xmlns:"+PrefixXMLDSig, NamespaceXMLDSig)
		dm.CreateAttr("Algorithm", em.DigestMethod)
	}
	if em.MGFAlgorithm != "" {
		mgf := elem.CreateElement(q(PrefixXMLEnc11, "MGF"))
		mgf.CreateAttr("xmlns:"+PrefixXMLEnc11, NamespaceXMLEnc11)
		mgf.CreateAttr("Algorithm", em.MGFAlgorithm)
	}
}

func (cd *CipherData) appendTo(parent *etree.Element) {
	elem := parent.CreateElement(q(PrefixXMLEnc, "CipherData"))

	if cd.CipherValue != nil {
		elem.CreateElement(q(PrefixXMLEnc, "CipherValue")).SetText(b64(cd.CipherValue))
	} else if cd.CipherReference != nil {
		cr := elem.CreateElement(q(PrefixXMLEnc, "CipherReference"))
		cr.CreateAttr("URI", cd.CipherReference.URI)
	}
}

func (ki *KeyInfo) appendTo(parent *etree.Element) {
	elem := parent.CreateElement(q(PrefixXMLDSig, "KeyInfo"))
	elem.CreateAttr("xmlns:"+PrefixXMLDSig, NamespaceXMLDSig)
	ki.appendContent(elem)
}

func (ki *KeyInfo) appendContent(elem *etree.Element) {
	if ki.ID != "" {
		elem.CreateAttr("Id", ki.ID)
	}
	if ki.KeyName != "" {
		elem.CreateElement(q(PrefixXMLDSig, "KeyName")).SetText(ki.KeyName)
	}
	for _, ek := range ki.EncryptedKeys {
		ek.appendTo(elem.CreateElement(q(PrefixXMLEnc, "EncryptedKey")))
	}
	if ki.AgreementMethod != nil {
		ki.AgreementMethod.appendTo(elem)
	}
	if ki.KeyValue != nil && ki.KeyValue.ECKeyValue != nil {
		kv := elem.CreateElement(q(PrefixXMLDSig, "KeyValue"))
		ec := kv.CreateElement(q(PrefixXMLDSig11, "ECKeyValue"))
		ec.CreateAttr("xmlns:"+PrefixXMLDSig11, NamespaceXMLDSig11)
		if ki.KeyValue.ECKeyValue.NamedCurve != "" {
			nc := ec.CreateElement(q(PrefixXMLDSig11, "NamedCurve"))
			nc.CreateAttr("URI", ki.KeyValue.ECKeyValue.NamedCurve)
		}
		ec.CreateElement(q(PrefixXMLDSig11, "PublicKey")).SetText(b64(ki.KeyValue.ECKeyValue.PublicKey))
	}
	if ki.X509Data != nil {
		x509 := elem.CreateElement(q(PrefixXMLDSig, "X509Data"))
		x509.CreateElement(q(PrefixXMLDSig, "X509Certificate")).SetText(b64(ki.X509Data.X509Certificate))
	}
}

func (am *AgreementMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement(q(PrefixXMLEnc, "AgreementMethod"))
	elem.CreateAttr("Algorithm", am.Algorithm)

	if am.KeyDerivationMethod != nil {
		am.KeyDerivationMethod.appendTo(elem)
	}
	if am.OriginatorKeyInfo != nil {
		oki := elem.CreateElement(q(PrefixXMLEnc, "OriginatorKeyInfo"))
		oki.CreateAttr("xmlns:"+PrefixXMLDSig, NamespaceXMLDSig)
		am.OriginatorKeyInfo.appendContent(oki)
	}
	if am.RecipientKeyInfo != nil {
		rki := elem.CreateElement(q(PrefixXMLEnc, "RecipientKeyInfo"))
		rki.CreateAttr("xmlns:"+PrefixXMLDSig, NamespaceXMLDSig)
		am.RecipientKeyInfo.appendContent(rki)
	}
}

func (kdm *KeyDerivationMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement(q(PrefixXMLEnc11, "KeyDerivationMethod"))
	elem.CreateAttr("xmlns:"+PrefixXMLEnc11, NamespaceXMLEnc11)
	elem.CreateAttr("Algorithm", kdm.Algorithm)

	if p := kdm.ConcatKDFParams; p != nil {
		params := elem.CreateElement(q(PrefixXMLEnc11, "ConcatKDFParams"))
		params.CreateAttr("AlgorithmID", bitString(p.AlgorithmID))
		params.CreateAttr("PartyUInfo", bitString(p.PartyUInfo))
		params.CreateAttr("PartyVInfo", bitString(p.PartyVInfo))
		if p.DigestMethod != "" {
			dm := params.CreateElement(q(PrefixXMLDSig, "DigestMethod"))
			dm.CreateAttr("xmlns:"+PrefixXMLDSig, NamespaceXMLDSig)
			dm.CreateAttr("Algorithm", p.DigestMethod)
		}
	}
}

func (ep *EncryptionProperties) appendTo(parent *etree.Element) {
	elem := parent.CreateElement(q(PrefixXMLEnc, "EncryptionProperties"))
	if ep.ID != "" {
		elem.CreateAttr("Id", ep.ID)
	}
	for _, p := range ep.Properties {
		pe := elem.CreateElement(q(PrefixXMLEnc, "EncryptionProperty"))
		if p.ID != "" {
			pe.CreateAttr("Id", p.ID)
		}
		if p.Name != "" {
			pe.CreateAttr("Name", p.Name)
		}
		if p.Value != "" {
			pe.SetText(p.Value)
		}
		if p.Content != nil {
			pe.AddChild(p.Content.Copy())
		}
	}
}

// NewEncryptedDataDocument creates an etree.Document containing an EncryptedData element
func NewEncryptedDataDocument(ed *EncryptedData) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(ed.ToElement())
	return doc
}
