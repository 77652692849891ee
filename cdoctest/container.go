// Package cdoctest builds genuine encrypted document containers for tests
// and tooling. Containers are really encrypted to their recipients, so they
// can be decrypted again with the matching Identity.
package cdoctest

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/leifj/cdoc/basen"
	"github.com/leifj/cdoc/xmlenc"
)

// Container versions.
const (
	Version10 = "1.0"
	Version11 = "1.1"
)

// Namespace and MIME type of the DigiDoc bundle used as payload and manifest.
const (
	NamespaceDigiDoc = "http://www.sk.ee/DigiDoc/v1.3.0#"
	MimeTypeDigiDoc  = "http://www.sk.ee/DigiDoc/v1.3.0/digidoc.xsd"
)

// ManifestMode selects how a container lists its data files.
type ManifestMode int

const (
	// ManifestDefault uses orig_file properties for 1.1 containers and a
	// single Filename property for single-file 1.0 containers.
	ManifestDefault ManifestMode = iota
	// ManifestOrigFile writes one orig_file property per file.
	ManifestOrigFile
	// ManifestInline writes a SignedDoc property holding the manifest as
	// child markup.
	ManifestInline
	// ManifestEscaped writes the manifest as escaped XML text.
	ManifestEscaped
	// ManifestBase64 writes the manifest as base64 text.
	ManifestBase64
	// ManifestNone writes no file name property at all.
	ManifestNone
)

// File is one payload file.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Container describes a container to build.
type Container struct {
	// Version is Version10 or Version11. Empty means Version11.
	Version    string
	Files      []File
	Recipients []*Identity
	Manifest   ManifestMode

	// Algorithm overrides the payload encryption algorithm.
	Algorithm string
	// DocumentFormat overrides the declared DocumentFormat value.
	DocumentFormat string
	// OmitDocumentFormat leaves out the DocumentFormat property.
	OmitDocumentFormat bool
	// Mutate, if set, is applied to the finished document before
	// serialization.
	Mutate func(doc *etree.Document)
}

// Build encrypts the payload to every recipient and serializes the
// container.
func (c *Container) Build() ([]byte, error) {
	doc, err := c.Document()
	if err != nil {
		return nil, err
	}
	if c.Mutate != nil {
		c.Mutate(doc)
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

// Document builds the container as an etree document.
func (c *Container) Document() (*etree.Document, error) {
	version := c.Version
	if version == "" {
		version = Version11
	}
	if version != Version10 && version != Version11 {
		return nil, fmt.Errorf("cdoctest: unknown version %q", version)
	}
	if len(c.Recipients) == 0 {
		return nil, errors.New("cdoctest: no recipients")
	}

	algorithm := c.Algorithm
	if algorithm == "" {
		algorithm = xmlenc.AlgorithmAES256GCM
		if version == Version10 {
			algorithm = xmlenc.AlgorithmAES128CBC
		}
	}

	wrappers := make([]xmlenc.KeyWrapper, 0, len(c.Recipients))
	for i, id := range c.Recipients {
		if version == Version10 && id.IsEC() {
			return nil, fmt.Errorf("cdoctest: recipient %d: 1.0 containers have RSA recipients only", i)
		}
		w, err := id.keyWrapper()
		if err != nil {
			return nil, fmt.Errorf("cdoctest: recipient %d: %w", i, err)
		}
		wrappers = append(wrappers, w)
	}

	payload, mimeType, err := c.payload()
	if err != nil {
		return nil, err
	}
	ed, err := xmlenc.NewEncryptor(algorithm, wrappers...).Encrypt(payload, mimeType)
	if err != nil {
		return nil, fmt.Errorf("cdoctest: %w", err)
	}
	for i, ek := range ed.KeyInfo.EncryptedKeys {
		ek.Recipient = c.Recipients[i].Certificate.Subject.CommonName
	}

	props, err := c.properties(version)
	if err != nil {
		return nil, err
	}
	ed.EncryptionProperties = props

	return xmlenc.NewEncryptedDataDocument(ed), nil
}

// payload returns the single file as is, or a DigiDoc bundle of all files.
func (c *Container) payload() ([]byte, string, error) {
	if len(c.Files) == 1 {
		f := c.Files[0]
		mime := f.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		return f.Data, mime, nil
	}
	bundle := etree.NewDocument()
	bundle.SetRoot(c.signedDoc(true))
	data, err := bundle.WriteToBytes()
	if err != nil {
		return nil, "", err
	}
	return data, MimeTypeDigiDoc, nil
}

// signedDoc builds a DigiDoc SignedDoc element listing the files, with
// their content when embed is set.
func (c *Container) signedDoc(embed bool) *etree.Element {
	root := etree.NewElement("SignedDoc")
	root.CreateAttr("xmlns", NamespaceDigiDoc)
	root.CreateAttr("format", "DIGIDOC-XML")
	root.CreateAttr("version", "1.3")
	for i, f := range c.Files {
		df := root.CreateElement("DataFile")
		df.CreateAttr("ContentType", "EMBEDDED_BASE64")
		df.CreateAttr("Filename", f.Name)
		df.CreateAttr("Id", dataFileID(i))
		df.CreateAttr("MimeType", f.MimeType)
		df.CreateAttr("Size", strconv.Itoa(len(f.Data)))
		if embed {
			df.SetText(basen.PEMEncoding.EncodeToString(f.Data))
		}
	}
	return root
}

func (c *Container) properties(version string) (*xmlenc.EncryptionProperties, error) {
	props := &xmlenc.EncryptionProperties{}
	add := func(name, value string) {
		props.Properties = append(props.Properties, xmlenc.EncryptionProperty{Name: name, Value: value})
	}

	if !c.OmitDocumentFormat {
		df := c.DocumentFormat
		if df == "" {
			df = "ENCDOC-XML|" + version
		}
		add("DocumentFormat", df)
	}
	add("LibraryVersion", "cdoctest|1.0")

	mode := c.Manifest
	if mode == ManifestDefault {
		mode = ManifestOrigFile
		if version == Version10 && len(c.Files) == 1 {
			add("Filename", c.Files[0].Name)
			return props, nil
		}
	}

	switch mode {
	case ManifestOrigFile:
		for i, f := range c.Files {
			add("orig_file", fmt.Sprintf("%s|%d|%s|%s", f.Name, len(f.Data), f.MimeType, dataFileID(i)))
		}
	case ManifestInline:
		props.Properties = append(props.Properties, xmlenc.EncryptionProperty{
			Name:    "SignedDoc",
			Content: c.signedDoc(false),
		})
	case ManifestEscaped, ManifestBase64:
		manifest := etree.NewDocument()
		manifest.SetRoot(c.signedDoc(false))
		data, err := manifest.WriteToBytes()
		if err != nil {
			return nil, err
		}
		if mode == ManifestEscaped {
			add("SignedDoc", string(data))
		} else {
			add("SignedDoc", basen.StdEncoding.EncodeToString(data))
		}
	case ManifestNone:
	default:
		return nil, fmt.Errorf("cdoctest: unknown manifest mode %d", mode)
	}
	return props, nil
}

func dataFileID(i int) string {
	return "D" + strconv.Itoa(i)
}

// Lorem returns a text file named name with filler content.
func Lorem(name string) File {
	return File{
		Name:     name,
		MimeType: "text/plain",
		Data:     []byte("Lorem ipsum dolor sit amet, consectetur adipiscing elit.\n"),
	}
}
