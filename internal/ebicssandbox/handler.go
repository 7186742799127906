package ebicssandbox

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
)

// ServeHTTP dispatches an incoming EBICS request by its root XML element,
// the same way a real host's single endpoint would.
func (b *Bank) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	root, err := rootElement(raw)
	if err != nil {
		http.Error(w, "malformed EBICS request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")

	switch root {
	case "ebicsHEVRequest":
		b.handleHEV(w, raw)
	case "ebicsUnsecuredRequest":
		b.handleUnsecured(w, raw)
	case "ebicsRequest":
		b.handleSecured(w, raw)
	default:
		http.Error(w, "unknown EBICS request type: "+root, http.StatusBadRequest)
	}
}

func rootElement(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
