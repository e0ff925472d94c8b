// Package document wraps the YAML tree model used to hold parsed assets. It
// exposes the small set of mutation primitives upgraders need, and a lazy
// event reader for callers that only want the first few fields of a document.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/assetmig/internal/models"
)

// indent matches the indentation asset files are written with.
const indent = 4

// Document is one parsed asset document.
type Document struct {
	node *yaml.Node
}

// Parse reads a single document from r.
func Parse(r io.Reader) (*Document, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", models.ErrParse)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", models.ErrParse)
	}

	return &Document{node: &node}, nil
}

// ParseBytes is a convenience wrapper around Parse.
func ParseBytes(data []byte) (*Document, error) {
	return Parse(bytes.NewReader(data))
}

// Root returns the top-level node of the document.
func (d *Document) Root() *Node {
	return wrap(d.node.Content[0])
}

// Tag returns the explicit tag of the root node, or "".
func (d *Document) Tag() string {
	return d.Root().Tag()
}

// Encode writes the document to w.
func (d *Document) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(indent)

	if err := enc.Encode(d.node); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	return enc.Close()
}

// Bytes returns the serialized document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
