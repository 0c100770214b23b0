package etsimport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

// Row is one successfully parsed group-address row.
type Row struct {
	Address     knx.Address
	Name        string
	Description string
	DPT         string

	// ComObject is the 0-based communication-object index this group
	// address is associated with. Taken from a "com_object" column when
	// the export carries one; otherwise rows bind to com-objects in file
	// order (row 0 -> object 0).
	ComObject int
}

// RowError records one malformed row, by 1-based line number.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("etsimport: line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result is the outcome of an import: every valid row, and one recorded
// error per malformed row.
type Result struct {
	Rows   []Row
	Errors []RowError
}

// ParseCSV reads a group-address CSV export. The first line must be a
// header naming an address column; name, description, datapoint-type and
// com-object columns are optional. Delimiters may be commas, semicolons
// or tabs; fields may be double-quoted.
func ParseCSV(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("etsimport: reading header: %w", err)
		}
		return nil, ErrNoRows
	}

	header := splitLine(scanner.Text())
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	addrCol := findColumn(colIndex, "address", "group address", "groupaddress", "ga")
	if addrCol < 0 {
		return nil, ErrInvalidFile
	}
	nameCol := findColumn(colIndex, "name", "bezeichnung")
	descCol := findColumn(colIndex, "description", "beschreibung")
	dptCol := findColumn(colIndex, "datapointtype", "datapoint type", "dpt", "datapoint")
	objCol := findColumn(colIndex, "com_object", "comobject", "com object")

	result := &Result{}
	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := splitLine(text)
		row, err := parseRow(fields, addrCol, nameCol, descCol, dptCol, objCol, len(result.Rows))
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: err})
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("etsimport: reading rows: %w", err)
	}

	if len(result.Rows) == 0 {
		return nil, ErrNoRows
	}
	return result, nil
}

// parseRow validates one data line. Any failure rejects the row whole.
func parseRow(fields []string, addrCol, nameCol, descCol, dptCol, objCol, ordinal int) (Row, error) {
	if addrCol >= len(fields) {
		return Row{}, fmt.Errorf("missing address field")
	}

	addr, err := knx.ParseGroup(strings.TrimSpace(fields[addrCol]))
	if err != nil {
		return Row{}, fmt.Errorf("bad group address %q: %w", fields[addrCol], err)
	}

	row := Row{Address: addr, ComObject: ordinal}
	if nameCol >= 0 && nameCol < len(fields) {
		row.Name = strings.TrimSpace(fields[nameCol])
	}
	if descCol >= 0 && descCol < len(fields) {
		row.Description = strings.TrimSpace(fields[descCol])
	}
	if dptCol >= 0 && dptCol < len(fields) {
		row.DPT = strings.TrimSpace(fields[dptCol])
	}
	if objCol >= 0 {
		if objCol >= len(fields) {
			return Row{}, fmt.Errorf("missing com_object field")
		}
		index, err := strconv.Atoi(strings.TrimSpace(fields[objCol]))
		if err != nil || index < 0 {
			return Row{}, fmt.Errorf("bad com_object index %q", fields[objCol])
		}
		row.ComObject = index
	}
	return row, nil
}

// Tables converts a parse result into the downloader-shaped rows
// AssocTable.Update consumes: one address-table entry and one
// association-table entry per imported row, preserving duplicates the
// way a downloader-written table would.
func (r *Result) Tables() ([]knxdevice.AddressTableRow, []knxdevice.AssocTableRow) {
	addresses := make([]knxdevice.AddressTableRow, len(r.Rows))
	assocs := make([]knxdevice.AssocTableRow, len(r.Rows))
	for i, row := range r.Rows {
		addresses[i] = knxdevice.AddressTableRow{Address: row.Address}
		assocs[i] = knxdevice.AssocTableRow{
			AddressIndex:   i + 1,
			ComObjectIndex: row.ComObject,
		}
	}
	return addresses, assocs
}

// Apply rebuilds a device's association table from the import, bounded by
// limit (zero means every row).
func (r *Result) Apply(dev *knxdevice.Device, limit int) error {
	addresses, assocs := r.Tables()
	if limit <= 0 {
		limit = len(assocs)
	}
	if err := dev.Associations.Update(assocs, addresses, limit); err != nil {
		return fmt.Errorf("etsimport: rebuilding associations: %w", err)
	}
	return nil
}

// splitLine splits one CSV line on commas, semicolons or tabs, honouring
// double-quoted fields.
func splitLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case (r == ',' || r == '\t' || r == ';') && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, current.String())

	return fields
}

func findColumn(index map[string]int, names ...string) int {
	for _, name := range names {
		if idx, ok := index[name]; ok {
			return idx
		}
	}
	return -1
}
