package xmlsafe

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/russellhaering/goxmldsig/etreeutils"
)

// Element is a read-only view of one element of a parsed Document. The zero
// Element represents "not found".
type Element struct {
	el *etree.Element
}

// IsZero reports whether e refers to no element.
func (e Element) IsZero() bool {
	return e.el == nil
}

// Tag returns the local name.
func (e Element) Tag() string {
	if e.el == nil {
		return ""
	}
	return e.el.Tag
}

// Space returns the namespace prefix as written in the document.
func (e Element) Space() string {
	if e.el == nil {
		return ""
	}
	return e.el.Space
}

// NamespaceURI resolves the element's prefix against in-scope declarations.
func (e Element) NamespaceURI() string {
	if e.el == nil {
		return ""
	}
	return e.el.NamespaceURI()
}

// Text returns the concatenated character data directly inside e, including
// CDATA sections, but not text of descendants.
func (e Element) Text() string {
	if e.el == nil {
		return ""
	}
	var b strings.Builder
	for _, tok := range e.el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

// Attr returns the value of the named attribute.
func (e Element) Attr(name string) (string, bool) {
	if e.el == nil {
		return "", false
	}
	a := e.el.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// AttrValue returns the named attribute or def when it is absent.
func (e Element) AttrValue(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// Children returns the child elements in document order.
func (e Element) Children() []Element {
	if e.el == nil {
		return nil
	}
	children := e.el.ChildElements()
	out := make([]Element, 0, len(children))
	for _, c := range children {
		out = append(out, Element{el: c})
	}
	return out
}

// Find returns the first element matching an etree path relative to e.
// Unprefixed path steps match any namespace prefix.
func (e Element) Find(path string) (Element, bool) {
	if e.el == nil {
		return Element{}, false
	}
	found := e.el.FindElement(path)
	return Element{el: found}, found != nil
}

// FindAll returns every element matching an etree path relative to e, in
// document order.
func (e Element) FindAll(path string) []Element {
	if e.el == nil {
		return nil
	}
	found := e.el.FindElements(path)
	out := make([]Element, 0, len(found))
	for _, f := range found {
		out = append(out, Element{el: f})
	}
	return out
}

// FindNS returns e and its descendants whose qualified name resolves to the
// given namespace URI and local name, in document order. Undeclared prefixes
// are reported as a rejection.
func (e Element) FindNS(namespace, tag string) ([]Element, error) {
	if e.el == nil {
		return nil, nil
	}
	ctx, err := etreeutils.NSBuildParentContext(e.el)
	if err != nil {
		return nil, reject("namespace resolution", err)
	}
	var out []Element
	err = etreeutils.NSFindIterateCtx(ctx, e.el, namespace, tag, func(_ etreeutils.NSContext, el *etree.Element) error {
		out = append(out, Element{el: el})
		return nil
	})
	if err != nil {
		return nil, reject("namespace resolution", err)
	}
	return out, nil
}

// Is reports whether e has the given namespace URI and local name.
func (e Element) Is(namespace, tag string) bool {
	return e.el != nil && e.el.Tag == tag && e.el.NamespaceURI() == namespace
}
