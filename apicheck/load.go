package apicheck

import (
	"io"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	simio "github.com/simio-dev/simio"
)

// LoadJSON reads a reference API description document.
func LoadJSON(r io.Reader) (*simio.Doc, error) {
	var doc simio.Doc
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, simio.Issues{{
			Code:    simio.CodeInvalidValue,
			Message: "reference document is not valid JSON",
			Cause:   err,
		}}
	}
	normalize(&doc)
	return &doc, nil
}

// LoadYAML reads a reference API description document in YAML form.
func LoadYAML(r io.Reader) (*simio.Doc, error) {
	var doc simio.Doc
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, simio.Issues{{
			Code:    simio.CodeInvalidValue,
			Message: "reference document is not valid YAML",
			Cause:   err,
		}}
	}
	normalize(&doc)
	return &doc, nil
}

// WriteJSON renders a document with stable two-space indentation.
func WriteJSON(w io.Writer, doc *simio.Doc) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func normalize(doc *simio.Doc) {
	if doc.Elements == nil {
		doc.Elements = map[string]simio.ElementEntry{}
	}
	if doc.Types == nil {
		doc.Types = map[string]simio.TypeEntry{}
	}
	for id, e := range doc.Elements {
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
			doc.Elements[id] = e
		}
	}
}
