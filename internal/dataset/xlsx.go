package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

// Sheet names of an exported workbook.
const (
	PackedSheet  = "Packed Data"
	SummarySheet = "Bin Summary"
)

var summaryHeader = []any{"Bin", "Total GrossWeight", "Total NettWeight", "Items Count", "Below Min Weight?", "Over Max Weight?"}

// ReadXLSX loads bundles from the first sheet of a workbook. The first row is
// the header; columns are located by name and extra columns are ignored.
func ReadXLSX(r io.Reader) ([]packer.Item, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrUnreadable, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrUnreadable, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(RequiredColumns, ", "))
	}

	columns, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	items := make([]packer.Item, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		item, err := parseRow(row, columns)
		if err != nil {
			// header is row 1
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidRow, i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func locateColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(RequiredColumns))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int) (packer.Item, error) {
	truck := cell(row, columns[ColumnTruckNumber])
	if truck == "" {
		return packer.Item{}, fmt.Errorf("%s is empty", ColumnTruckNumber)
	}
	gross, err := parseWeight(cell(row, columns[ColumnGrossWeight]), ColumnGrossWeight)
	if err != nil {
		return packer.Item{}, err
	}
	nett, err := parseWeight(cell(row, columns[ColumnNettWeight]), ColumnNettWeight)
	if err != nil {
		return packer.Item{}, err
	}
	return packer.Item{
		GroupID:     truck,
		SecondaryID: cell(row, columns[ColumnBundleNumber]),
		GrossWeight: gross,
		NettWeight:  nett,
	}, nil
}

func parseWeight(raw, column string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is empty", column)
	}
	w, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q is not a number", column, raw)
	}
	if w.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative, got %s", column, raw)
	}
	return w, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteXLSX writes the packed bundles and the bin summary as two sheets.
func WriteXLSX(w io.Writer, result packer.Result) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), PackedSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	packed := make([][]any, 0, len(result.Assignments)+1)
	packed = append(packed, []any{ColumnTruckNumber, ColumnBundleNumber, ColumnGrossWeight, ColumnNettWeight, ColumnBin})
	for _, a := range result.Assignments {
		packed = append(packed, []any{
			a.Item.GroupID,
			a.Item.SecondaryID,
			a.Item.GrossWeight.InexactFloat64(),
			a.Item.NettWeight.InexactFloat64(),
			a.Bin,
		})
	}
	if err := writeRows(f, PackedSheet, packed); err != nil {
		return err
	}

	summary := make([][]any, 0, len(result.Bins)+1)
	summary = append(summary, summaryHeader)
	for _, b := range result.Bins {
		summary = append(summary, []any{
			b.Bin,
			b.TotalGrossWeight.InexactFloat64(),
			b.TotalNettWeight.InexactFloat64(),
			b.ItemsCount,
			b.BelowMinWeight,
			b.Overweight,
		})
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, ref, &rows[i]); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
