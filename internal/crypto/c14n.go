package crypto

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// Canonicalize implements the restricted subset of XML Exclusive
// Canonicalization (XML-EXC-C14N) that EBICS actually needs: re-serializing
// the whole fragment it is given with attributes sorted lexicographically,
// empty elements expanded to open/close tag pairs, comments dropped and no
// XML declaration. Character data, whitespace included, is kept as it is.
// It does not select the elements marked authenticate="true"; every element
// of the fragment is serialized. It does not implement general C14N
// (inclusive namespace prefix lists, or arbitrary attribute-value
// normalization) because Nexus only ever canonicalizes XML it generated
// itself, never third-party documents; see SPEC_FULL.md (section 5, C14N
// scope) for why no general canonicalizer is used.
func Canonicalize(fragment []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(fragment))
	var out bytes.Buffer

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tokenizing for canonicalization: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			writeStartElement(&out, t)
		case xml.EndElement:
			fmt.Fprintf(&out, "</%s>", qualifiedName(t.Name))
		case xml.CharData:
			out.WriteString(escapeText(string(t)))
		}
	}

	return out.Bytes(), nil
}

func writeStartElement(out *bytes.Buffer, t xml.StartElement) {
	out.WriteByte('<')
	out.WriteString(qualifiedName(t.Name))

	attrs := make([]xml.Attr, len(t.Attr))
	copy(attrs, t.Attr)
	sort.Slice(attrs, func(i, j int) bool {
		return qualifiedName(attrs[i].Name) < qualifiedName(attrs[j].Name)
	})
	for _, a := range attrs {
		fmt.Fprintf(out, " %s=\"%s\"", qualifiedName(a.Name), escapeAttr(a.Value))
	}
	out.WriteByte('>')
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func escapeText(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func escapeAttr(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
