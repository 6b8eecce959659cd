package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

type itemsDocument struct {
	Items []ItemRecord `json:"items"`
}

// ReadJSON loads bundles from a document of the form {"items": [...]}.
func ReadJSON(r io.Reader) ([]packer.Item, error) {
	var doc itemsDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %w", ErrUnreadable, err)
	}
	return ItemsFromRecords(doc.Items)
}

// WriteJSON writes the report for result as indented JSON.
func WriteJSON(w io.Writer, result packer.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewReport(result)); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
