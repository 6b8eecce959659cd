package dataset

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

// Format identifies a dataset encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// Read decodes bundles in the given format.
func Read(format Format, r io.Reader) ([]packer.Item, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatJSON:
		return ReadJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Write encodes a packing result in the given format.
func Write(format Format, w io.Writer, result packer.Result) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, result)
	case FormatJSON:
		return WriteJSON(w, result)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
