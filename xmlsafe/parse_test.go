package xmlsafe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<denc:EncryptedData xmlns:denc="http://www.w3.org/2001/04/xmlenc#" xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Id="ed">
  <denc:EncryptionMethod Algorithm="http://www.w3.org/2009/xmlenc11#aes256-gcm"/>
  <ds:KeyInfo>
    <denc:EncryptedKey Recipient="first">
      <ds:KeyInfo><ds:X509Data><ds:X509Certificate>QUJD
REVG</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
    </denc:EncryptedKey>
    <denc:EncryptedKey Recipient="second"/>
  </ds:KeyInfo>
  <denc:EncryptionProperties>
    <denc:EncryptionProperty Name="orig_file">a.txt|1|text/plain|D0</denc:EncryptionProperty>
    <denc:EncryptionProperty Name="orig_file"><![CDATA[b<&>.txt]]>|2|text/plain|D1</denc:EncryptionProperty>
  </denc:EncryptionProperties>
</denc:EncryptedData>`

func TestParseAndQuery(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleXML), 0)
	require.NoError(t, err)

	root := doc.Root()
	assert.Equal(t, "EncryptedData", root.Tag())
	assert.Equal(t, "denc", root.Space())
	assert.Equal(t, "http://www.w3.org/2001/04/xmlenc#", root.NamespaceURI())
	assert.True(t, root.Is("http://www.w3.org/2001/04/xmlenc#", "EncryptedData"))
	assert.Equal(t, "ed", root.AttrValue("Id", ""))
	assert.Equal(t, int64(len(sampleXML)), doc.Size())

	keys := root.FindAll("./KeyInfo/EncryptedKey")
	require.Len(t, keys, 2)
	assert.Equal(t, "first", keys[0].AttrValue("Recipient", ""))
	assert.Equal(t, "second", keys[1].AttrValue("Recipient", ""))

	cert, ok := keys[0].Find("./KeyInfo/X509Data/X509Certificate")
	require.True(t, ok)
	assert.Equal(t, "QUJD\nREVG", cert.Text())

	_, ok = keys[1].Find("./KeyInfo")
	assert.False(t, ok)

	props := root.FindAll("./EncryptionProperties/EncryptionProperty[@Name='orig_file']")
	require.Len(t, props, 2)
	assert.Equal(t, "b<&>.txt|2|text/plain|D1", props[1].Text())

	children := root.Children()
	require.Len(t, children, 3)
	assert.Equal(t, []string{"EncryptionMethod", "KeyInfo", "EncryptionProperties"},
		[]string{children[0].Tag(), children[1].Tag(), children[2].Tag()})
}

func TestFindNSResolvesNamespaces(t *testing.T) {
	doc, err := ParseBytes([]byte(`<a:root xmlns:a="urn:a" xmlns:b="urn:b">
  <b:item n="1"/>
  <a:item n="2"/>
  <x xmlns="urn:b"><item n="3"/></x>
</a:root>`))
	require.NoError(t, err)

	items, err := doc.Root().FindNS("urn:b", "item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].AttrValue("n", ""))
	assert.Equal(t, "3", items[1].AttrValue("n", ""))

	x, ok := doc.Root().Find("./x")
	require.True(t, ok)
	nested, err := x.FindNS("urn:b", "item")
	require.NoError(t, err)
	require.Len(t, nested, 1)
}

func TestParseDecodesDeclaredCharset(t *testing.T) {
	latin1 := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><name>M\xe4r\xfc</name>")
	doc, err := ParseBytes(latin1)
	require.NoError(t, err)
	assert.Equal(t, "Märü", doc.Root().Text())

	_, err = ParseBytes([]byte(`<?xml version="1.0" encoding="x-no-such-charset"?><a/>`))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestParseRejectsHostileInput(t *testing.T) {
	testCases := []struct {
		name string
		xml  string
	}{
		{"unreferenced doctype", `<?xml version="1.0"?><!DOCTYPE root [<!ENTITY unused "x">]><root/>`},
		{"plain doctype", `<!DOCTYPE root><root/>`},
		{"external entity", `<?xml version="1.0"?><!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///etc/passwd">]><root>&xxe;</root>`},
		{"parameter entity", `<?xml version="1.0"?><!DOCTYPE foo [<!ENTITY % xxe SYSTEM "file:///etc/passwd">%xxe;]><root/>`},
		{"billion laughs", `<?xml version="1.0"?><!DOCTYPE lolz [<!ENTITY lol "lol"><!ENTITY lol2 "&lol;&lol;&lol;&lol;&lol;&lol;&lol;&lol;&lol;&lol;"><!ENTITY lol3 "&lol2;&lol2;&lol2;&lol2;&lol2;&lol2;&lol2;&lol2;&lol2;&lol2;">]><root a="&lol3;"/>`},
		{"undeclared entity", `<root>&nope;</root>`},
		{"unclosed tag", `<root><child></root>`},
		{"truncated", `<root><child/>`},
		{"no root", `<?xml version="1.0"?>`},
		{"two roots", `<a/><b/>`},
		{"text after root", `<a/>trailing`},
		{"empty", "  \n"},
		{"not xml", "just some text"},
		{"invalid utf-8", "<root>\xff\xfe</root>"},
		{"nested doctype", `<root><!DOCTYPE inner><child/></root>`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseBytes([]byte(tc.xml))
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestParseAcceptsByteOrderMark(t *testing.T) {
	data := []byte("\xef\xbb\xbf<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<a>b</a>")
	doc, err := ParseBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Root().Tag())
	assert.Equal(t, "b", doc.Root().Text())
	assert.Equal(t, int64(len(data)), doc.Size())

	doc, err = ParseBytes([]byte("\xef\xbb\xbf<a/>"))
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Root().Tag())

	_, err = ParseBytes([]byte("\xef\xbb\xbf"))
	assert.ErrorIs(t, err, ErrRejected)
	_, err = ParseBytes([]byte("\xef\xbb\xbf\xef\xbb\xbf<a/>"))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestReferencesStayUnderExpansionCeiling(t *testing.T) {
	refs := strings.Repeat("&amp;&lt;&#x41;", 5000)
	body := `<root a="` + refs + `">` + refs + `</root>`
	doc, err := ParseBytes([]byte(body))
	require.NoError(t, err)

	expanded, err := inspect(doc.doc.Root())
	require.NoError(t, err)
	assert.Equal(t, int64(2*3*5000), expanded)
	assert.Less(t, expanded, int64(len(body)))
	assert.Equal(t, strings.Repeat("&<A", 5000), doc.Root().Text())
}

func TestParseEnforcesSizeCeiling(t *testing.T) {
	body := "<root>" + strings.Repeat("x", 100) + "</root>"

	_, err := Parse(strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	_, err = Parse(strings.NewReader(body), int64(len(body)-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestZeroElement(t *testing.T) {
	var e Element
	assert.True(t, e.IsZero())
	assert.Empty(t, e.Tag())
	assert.Empty(t, e.Text())
	assert.Nil(t, e.Children())
	_, ok := e.Find("./x")
	assert.False(t, ok)
	found, err := e.FindNS("urn:x", "x")
	assert.NoError(t, err)
	assert.Empty(t, found)
}
