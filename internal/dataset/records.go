package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

// Column headers shared by the workbook and JSON forms.
const (
	ColumnTruckNumber  = "TruckNumber"
	ColumnBundleNumber = "BundleNumber"
	ColumnGrossWeight  = "GrossWeight"
	ColumnNettWeight   = "NettWeight"
	ColumnBin          = "Bin"
)

// RequiredColumns lists the input columns every dataset must carry.
var RequiredColumns = []string{ColumnTruckNumber, ColumnBundleNumber, ColumnGrossWeight, ColumnNettWeight}

// Identifier is a truck or bundle number. It decodes from either a JSON string
// or a JSON number so that spreadsheet exports can be posted as-is.
type Identifier string

// UnmarshalJSON implements json.Unmarshaler.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = Identifier(n.String())
	return nil
}

// ItemRecord is one input bundle in JSON form. Pointer fields are nil when the
// key is absent or null; an empty bundle number is still present.
type ItemRecord struct {
	TruckNumber  Identifier       `json:"truckNumber" validate:"required"`
	BundleNumber *Identifier      `json:"bundleNumber" validate:"required"`
	GrossWeight  *decimal.Decimal `json:"grossWeight" validate:"required,gte=0"`
	NettWeight   *decimal.Decimal `json:"nettWeight" validate:"required,gte=0"`
}

// PackedRecord is one bundle annotated with its bin.
type PackedRecord struct {
	TruckNumber  string  `json:"truckNumber"`
	BundleNumber string  `json:"bundleNumber"`
	GrossWeight  float64 `json:"grossWeight"`
	NettWeight   float64 `json:"nettWeight"`
	Bin          int     `json:"bin"`
}

// BinRecord is one row of the bin summary.
type BinRecord struct {
	Bin              int     `json:"bin"`
	TotalGrossWeight float64 `json:"totalGrossWeight"`
	TotalNettWeight  float64 `json:"totalNettWeight"`
	ItemsCount       int     `json:"itemsCount"`
	BelowMinWeight   bool    `json:"belowMinWeight"`
	Overweight       bool    `json:"overweight"`
}

// Report is the exported form of a packing result.
type Report struct {
	PackedData     []PackedRecord `json:"packedData"`
	BinSummary     []BinRecord    `json:"binSummary"`
	TotalBins      int            `json:"totalBins"`
	BelowMinBins   int            `json:"belowMinBins"`
	OverweightBins int            `json:"overweightBins"`
}

// NewReport flattens a packing result into exportable tables.
func NewReport(result packer.Result) Report {
	report := Report{
		PackedData:     make([]PackedRecord, 0, len(result.Assignments)),
		BinSummary:     make([]BinRecord, 0, len(result.Bins)),
		TotalBins:      result.BinCount(),
		BelowMinBins:   result.BelowMinCount(),
		OverweightBins: result.OverweightCount(),
	}
	for _, a := range result.Assignments {
		report.PackedData = append(report.PackedData, PackedRecord{
			TruckNumber:  a.Item.GroupID,
			BundleNumber: a.Item.SecondaryID,
			GrossWeight:  a.Item.GrossWeight.InexactFloat64(),
			NettWeight:   a.Item.NettWeight.InexactFloat64(),
			Bin:          a.Bin,
		})
	}
	for _, b := range result.Bins {
		report.BinSummary = append(report.BinSummary, BinRecord{
			Bin:              b.Bin,
			TotalGrossWeight: b.TotalGrossWeight.InexactFloat64(),
			TotalNettWeight:  b.TotalNettWeight.InexactFloat64(),
			ItemsCount:       b.ItemsCount,
			BelowMinWeight:   b.BelowMinWeight,
			Overweight:       b.Overweight,
		})
	}
	return report
}

// ItemsFromRecords converts JSON records into packer items. Record positions
// are reported 1-based.
func ItemsFromRecords(records []ItemRecord) ([]packer.Item, error) {
	items := make([]packer.Item, 0, len(records))
	for i, rec := range records {
		truck := strings.TrimSpace(string(rec.TruckNumber))
		switch {
		case truck == "":
			return nil, fmt.Errorf("%w: record %d: truck number is empty", ErrInvalidRow, i+1)
		case rec.BundleNumber == nil:
			return nil, fmt.Errorf("%w: record %d: bundleNumber is required", ErrInvalidRow, i+1)
		case rec.GrossWeight == nil:
			return nil, fmt.Errorf("%w: record %d: grossWeight is required", ErrInvalidRow, i+1)
		case rec.NettWeight == nil:
			return nil, fmt.Errorf("%w: record %d: nettWeight is required", ErrInvalidRow, i+1)
		case rec.GrossWeight.IsNegative() || rec.NettWeight.IsNegative():
			return nil, fmt.Errorf("%w: record %d: weights must not be negative", ErrInvalidRow, i+1)
		}
		items = append(items, packer.Item{
			GroupID:     truck,
			SecondaryID: strings.TrimSpace(string(*rec.BundleNumber)),
			GrossWeight: *rec.GrossWeight,
			NettWeight:  *rec.NettWeight,
		})
	}
	return items, nil
}
