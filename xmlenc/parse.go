package xmlenc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leifj/cdoc/basen"
	"github.com/leifj/cdoc/xmlsafe"
)

// ErrStructure is wrapped by parse errors caused by missing or malformed
// XML Encryption markup, as opposed to undecodable base64.
var ErrStructure = errors.New("xmlenc: invalid structure")

func decodeText(what string, e xmlsafe.Element) ([]byte, error) {
	b, err := basen.StdEncoding.DecodeString(e.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return b, nil
}

// ParseEncryptedData parses an xenc:EncryptedData element.
func ParseEncryptedData(elem xmlsafe.Element) (*EncryptedData, error) {
	if elem.IsZero() {
		return nil, fmt.Errorf("%w: missing EncryptedData element", ErrStructure)
	}
	if !elem.Is(NamespaceXMLEnc, "EncryptedData") {
		return nil, fmt.Errorf("%w: unexpected root element {%s}%s", ErrStructure, elem.NamespaceURI(), elem.Tag())
	}

	ed := &EncryptedData{}
	if err := parseEncryptedType(elem, &ed.EncryptedType); err != nil {
		return nil, err
	}
	return ed, nil
}

// ParseEncryptedKey parses an xenc:EncryptedKey element
func ParseEncryptedKey(elem xmlsafe.Element) (*EncryptedKey, error) {
	if elem.IsZero() {
		return nil, fmt.Errorf("%w: missing EncryptedKey element", ErrStructure)
	}

	ek := &EncryptedKey{
		Recipient: elem.AttrValue("Recipient", ""),
	}
	if err := parseEncryptedType(elem, &ek.EncryptedType); err != nil {
		return nil, err
	}
	if ckn, ok := elem.Find("./CarriedKeyName"); ok {
		ek.CarriedKeyName = ckn.Text()
	}
	return ek, nil
}

func parseEncryptedType(elem xmlsafe.Element, et *EncryptedType) error {
	et.ID = elem.AttrValue("Id", "")
	et.Type = elem.AttrValue("Type", "")
	et.MimeType = elem.AttrValue("MimeType", "")
	et.Encoding = elem.AttrValue("Encoding", "")

	if emElem, ok := elem.Find("./EncryptionMethod"); ok {
		em, err := parseEncryptionMethod(emElem)
		if err != nil {
			return err
		}
		et.EncryptionMethod = em
	}

	if kiElem, ok := elem.Find("./KeyInfo"); ok {
		ki, err := parseKeyInfo(kiElem)
		if err != nil {
			return fmt.Errorf("failed to parse KeyInfo: %w", err)
		}
		et.KeyInfo = ki
	}

	if cdElem, ok := elem.Find("./CipherData"); ok {
		cd, err := parseCipherData(cdElem)
		if err != nil {
			return fmt.Errorf("failed to parse CipherData: %w", err)
		}
		et.CipherData = cd
	}

	if epElem, ok := elem.Find("./EncryptionProperties"); ok {
		et.EncryptionProperties = parseEncryptionProperties(epElem)
	}

	return nil
}

func parseEncryptionMethod(elem xmlsafe.Element) (*EncryptionMethod, error) {
	em := &EncryptionMethod{
		Algorithm: strings.TrimSpace(elem.AttrValue("Algorithm", "")),
	}
	if em.Algorithm == "" {
		return nil, fmt.Errorf("%w: EncryptionMethod without Algorithm", ErrStructure)
	}

	if ks, ok := elem.Find("./KeySize"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(ks.Text()))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: invalid KeySize %q", ErrStructure, ks.Text())
		}
		em.KeySize = n
	}
	if dm, ok := elem.Find("./DigestMethod"); ok {
		em.DigestMethod = dm.AttrValue("Algorithm", "")
	}
	if mgf, ok := elem.Find("./MGF"); ok {
		em.MGFAlgorithm = mgf.AttrValue("Algorithm", "")
	}

	return em, nil
}

func parseCipherData(elem xmlsafe.Element) (*CipherData, error) {
	cd := &CipherData{}

	if cv, ok := elem.Find("./CipherValue"); ok {
		v, err := decodeText("CipherValue", cv)
		if err != nil {
			return nil, err
		}
		cd.CipherValue = v
	} else if cr, ok := elem.Find("./CipherReference"); ok {
		cd.CipherReference = &CipherReference{URI: cr.AttrValue("URI", "")}
	} else {
		return nil, fmt.Errorf("%w: CipherData has neither CipherValue nor CipherReference", ErrStructure)
	}

	return cd, nil
}

func parseKeyInfo(elem xmlsafe.Element) (*KeyInfo, error) {
	ki := &KeyInfo{
		ID: elem.AttrValue("Id", ""),
	}

	if kn, ok := elem.Find("./KeyName"); ok {
		ki.KeyName = kn.Text()
	}

	for i, ekElem := range elem.FindAll("./EncryptedKey") {
		ek, err := ParseEncryptedKey(ekElem)
		if err != nil {
			return nil, fmt.Errorf("EncryptedKey %d: %w", i, err)
		}
		ki.EncryptedKeys = append(ki.EncryptedKeys, ek)
	}

	if x509Elem, ok := elem.Find("./X509Data"); ok {
		x, err := parseX509Data(x509Elem)
		if err != nil {
			return nil, err
		}
		ki.X509Data = x
	}

	if kvElem, ok := elem.Find("./KeyValue"); ok {
		kv, err := parseKeyValue(kvElem)
		if err != nil {
			return nil, err
		}
		ki.KeyValue = kv
	}

	if amElem, ok := elem.Find("./AgreementMethod"); ok {
		am, err := parseAgreementMethod(amElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse AgreementMethod: %w", err)
		}
		ki.AgreementMethod = am
	}

	return ki, nil
}

func parseX509Data(elem xmlsafe.Element) (*X509Data, error) {
	certElem, ok := elem.Find("./X509Certificate")
	if !ok {
		return &X509Data{}, nil
	}
	cert, err := decodeText("X509Certificate", certElem)
	if err != nil {
		return nil, err
	}
	return &X509Data{X509Certificate: cert}, nil
}

func parseKeyValue(elem xmlsafe.Element) (*KeyValue, error) {
	kv := &KeyValue{}
	eck, ok := elem.Find("./ECKeyValue")
	if !ok {
		return kv, nil
	}
	kv.ECKeyValue = &ECKeyValue{}
	if nc, ok := eck.Find("./NamedCurve"); ok {
		kv.ECKeyValue.NamedCurve = nc.AttrValue("URI", "")
	}
	if pk, ok := eck.Find("./PublicKey"); ok {
		b, err := decodeText("PublicKey", pk)
		if err != nil {
			return nil, err
		}
		kv.ECKeyValue.PublicKey = b
	}
	return kv, nil
}

func parseAgreementMethod(elem xmlsafe.Element) (*AgreementMethod, error) {
	am := &AgreementMethod{
		Algorithm: elem.AttrValue("Algorithm", ""),
	}

	if kdmElem, ok := elem.Find("./KeyDerivationMethod"); ok {
		kdm, err := parseKeyDerivationMethod(kdmElem)
		if err != nil {
			return nil, err
		}
		am.KeyDerivationMethod = kdm
	}

	if okiElem, ok := elem.Find("./OriginatorKeyInfo"); ok {
		oki, err := parseKeyInfo(okiElem)
		if err != nil {
			return nil, fmt.Errorf("OriginatorKeyInfo: %w", err)
		}
		am.OriginatorKeyInfo = oki
	}

	if rkiElem, ok := elem.Find("./RecipientKeyInfo"); ok {
		rki, err := parseKeyInfo(rkiElem)
		if err != nil {
			return nil, fmt.Errorf("RecipientKeyInfo: %w", err)
		}
		am.RecipientKeyInfo = rki
	}

	return am, nil
}

func parseKeyDerivationMethod(elem xmlsafe.Element) (*KeyDerivationMethod, error) {
	kdm := &KeyDerivationMethod{
		Algorithm: elem.AttrValue("Algorithm", ""),
	}

	paramsElem, ok := elem.Find("./ConcatKDFParams")
	if !ok {
		return kdm, nil
	}
	p := &ConcatKDFParams{}
	if dm, ok := paramsElem.Find("./DigestMethod"); ok {
		p.DigestMethod = dm.AttrValue("Algorithm", "")
	}
	for _, f := range []struct {
		attr string
		dst  *[]byte
	}{
		{"AlgorithmID", &p.AlgorithmID},
		{"PartyUInfo", &p.PartyUInfo},
		{"PartyVInfo", &p.PartyVInfo},
	} {
		v, ok := paramsElem.Attr(f.attr)
		if !ok {
			continue
		}
		b, err := parseBitString(v)
		if err != nil {
			return nil, fmt.Errorf("ConcatKDFParams %s: %w", f.attr, err)
		}
		*f.dst = b
	}
	kdm.ConcatKDFParams = p
	return kdm, nil
}

func parseBitString(v string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructure, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] != 0 {
		return nil, fmt.Errorf("%w: partial octets not supported", ErrStructure)
	}
	return b[1:], nil
}

func parseEncryptionProperties(elem xmlsafe.Element) *EncryptionProperties {
	ep := &EncryptionProperties{
		ID: elem.AttrValue("Id", ""),
	}
	for _, pe := range elem.FindAll("./EncryptionProperty") {
		ep.Properties = append(ep.Properties, EncryptionProperty{
			ID:      pe.AttrValue("Id", ""),
			Name:    pe.AttrValue("Name", ""),
			Value:   pe.Text(),
			Element: pe,
		})
	}
	return ep
}
