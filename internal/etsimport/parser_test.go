package etsimport

import (
	"errors"
	"strings"
	"testing"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

const sampleExport = `"Address";"Name";"Description";"DatapointType"
"0/0/1";"Living Room Light";"ceiling";"DPST-1-1"
"0/0/2";"Living Room Dimmer";"";"DPST-5-1"
"not-an-address";"Broken";"";""
"0/1/1";"Hall Temperature";"";"DPST-9-1"
"99/0/1";"Out Of Range";"";""
`

func TestParseCSVCountsRowsAndErrors(t *testing.T) {
	result, err := ParseCSV(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	if len(result.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(result.Rows))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("got %d errors, want 2", len(result.Errors))
	}

	// Line numbers are 1-based including the header.
	if result.Errors[0].Line != 4 || result.Errors[1].Line != 6 {
		t.Errorf("error lines = %d, %d; want 4, 6", result.Errors[0].Line, result.Errors[1].Line)
	}

	first := result.Rows[0]
	if got := first.Address.FormatGroup(); got != "0/0/1" {
		t.Errorf("first address = %q", got)
	}
	if first.Name != "Living Room Light" || first.Description != "ceiling" || first.DPT != "DPST-1-1" {
		t.Errorf("first row = %+v", first)
	}

	// Without a com_object column, rows bind to objects in file order.
	for i, row := range result.Rows {
		if row.ComObject != i {
			t.Errorf("row %d bound to object %d, want %d", i, row.ComObject, i)
		}
	}
}

func TestParseCSVComObjectColumn(t *testing.T) {
	input := "Address,Name,com_object\n" +
		"0/0/1,Switch,2\n" +
		"0/0/2,Status,2\n" +
		"0/0/3,Bad Index,minus-one\n"

	result, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(result.Rows) != 2 || len(result.Errors) != 1 {
		t.Fatalf("rows = %d, errors = %d; want 2, 1", len(result.Rows), len(result.Errors))
	}
	if result.Rows[0].ComObject != 2 || result.Rows[1].ComObject != 2 {
		t.Errorf("com objects = %d, %d; want 2, 2", result.Rows[0].ComObject, result.Rows[1].ComObject)
	}
}

func TestParseCSVNoAddressColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Name,Description\nfoo,bar\n"))
	if !errors.Is(err, ErrInvalidFile) {
		t.Errorf("err = %v, want ErrInvalidFile", err)
	}
}

func TestParseCSVNoValidRows(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Address\nnonsense\n"))
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}

	_, err = ParseCSV(strings.NewReader(""))
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("empty input: err = %v, want ErrNoRows", err)
	}
}

func TestTablesShape(t *testing.T) {
	result, err := ParseCSV(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	addresses, assocs := result.Tables()
	if len(addresses) != len(result.Rows) || len(assocs) != len(result.Rows) {
		t.Fatalf("table sizes = %d/%d, want %d", len(addresses), len(assocs), len(result.Rows))
	}
	for i, assoc := range assocs {
		if assoc.AddressIndex != i+1 {
			t.Errorf("assoc %d address index = %d, want %d", i, assoc.AddressIndex, i+1)
		}
	}
}

func TestApplyRebuildsAssociations(t *testing.T) {
	result, err := ParseCSV(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	addr, _ := knx.ParsePhysical("1.1.8")
	dev := knxdevice.NewDevice(addr, "if0")
	for range result.Rows {
		dev.ComObjects = append(dev.ComObjects, knxdevice.NewComObject(
			knxdevice.Bit1, knx.PriorityLow, knxdevice.AccessFlags{Enabled: true, Write: true},
		))
	}

	if err := result.Apply(dev, 0); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := dev.Associations.Len(); got != len(result.Rows) {
		t.Fatalf("associations = %d, want %d", got, len(result.Rows))
	}

	group, _ := knx.ParseGroup("0/1/1")
	idx, err := dev.Associations.FindByGroupAddress(group)
	if err != nil {
		t.Fatalf("FindByGroupAddress: %v", err)
	}
	if got := dev.Associations.At(idx).ComObject; got != 2 {
		t.Errorf("0/1/1 bound to object %d, want 2", got)
	}
}
