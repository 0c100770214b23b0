package knxdevice

import (
	"fmt"
	"sort"

	"github.com/basilfx/knx-devstack/internal/knx"
)

// Association pairs a group address with the index of the communication
// object it maps to. Associations hold indices into the com-object array
// rather than pointers, which sidesteps Go's lack of raw pointer
// arithmetic and keeps cross references index-based (eases
// serialisation, is trivial to validate in tests).
type Association struct {
	GroupAddr knx.Address
	ComObject int // index into the device's ComObjects slice
}

// AddressTableRow and AssocTableRow are the raw, 1-based/0-based
// memory-mapped rows a downloader writes to configure the association
// table; AssocTable.Update consumes them to (re)build the sorted runtime
// association set.
type AddressTableRow struct {
	Address knx.Address
}

type AssocTableRow struct {
	AddressIndex   int // 1-based index into the address table
	ComObjectIndex int // 0-based index into the com-object array
}

// AssocTable is the group-address -> communication-object association
// set, kept sorted non-decreasing by group address so lookups can binary
// search. Multiple entries may share a group address or a communication
// object.
type AssocTable struct {
	mappings []Association
}

// Len returns the number of associations currently held.
func (t *AssocTable) Len() int { return len(t.mappings) }

// At returns the association at the given index.
func (t *AssocTable) At(i int) Association { return t.mappings[i] }

// Update rebuilds the association table from the raw downloader rows,
// clamped to limit (and to the number of rows actually supplied).
// Insertion is an ordered-insert that keeps the mapping slice sorted by
// group address at every step, so FindByGroupAddress can binary search it
// — duplicates (same group address or same com-object in more than one
// row) are preserved, not deduplicated.
func (t *AssocTable) Update(rows []AssocTableRow, addrTable []AddressTableRow, limit int) error {
	t.mappings = t.mappings[:0]

	n := len(rows)
	if n > limit {
		n = limit
	}

	for i := 0; i < n; i++ {
		row := rows[i]
		if row.AddressIndex < 1 || row.AddressIndex > len(addrTable) {
			return fmt.Errorf("knxdevice: assoc row %d: address index %d out of range", i, row.AddressIndex)
		}
		group := addrTable[row.AddressIndex-1].Address
		entry := Association{GroupAddr: group, ComObject: row.ComObjectIndex}

		pos := sort.Search(len(t.mappings), func(j int) bool {
			return t.mappings[j].GroupAddr.Compare(group) >= 0
		})
		t.mappings = append(t.mappings, Association{})
		copy(t.mappings[pos+1:], t.mappings[pos:])
		t.mappings[pos] = entry
	}
	return nil
}

// FindByGroupAddress returns the index of the first association matching
// group, found via binary search (the key invariant the mapping slice's
// sort order exists to support). ErrNotFound if no association has that
// group address.
func (t *AssocTable) FindByGroupAddress(group knx.Address) (int, error) {
	i := sort.Search(len(t.mappings), func(j int) bool {
		return t.mappings[j].GroupAddr.Compare(group) >= 0
	})
	if i < len(t.mappings) && t.mappings[i].GroupAddr.Equal(group) {
		return i, nil
	}
	return 0, ErrNotFound
}

// IterByGroupAddress walks every association sharing a group address.
// Call with prev == -1 to get the first match; pass the previously
// returned index back in to get the next one. Returns (-1, ErrNotFound)
// once there are no more matches. Relies on sort order for early
// termination: as soon as the next entry's group address differs, the
// scan stops.
func (t *AssocTable) IterByGroupAddress(prev int, group knx.Address) (int, error) {
	if prev < 0 {
		return t.FindByGroupAddress(group)
	}
	next := prev + 1
	if next >= len(t.mappings) || !t.mappings[next].GroupAddr.Equal(group) {
		return -1, ErrNotFound
	}
	return next, nil
}

// FindByComObject returns the index of the first association referencing
// the given communication object index. Associations are not sorted by
// com-object, so this is a linear scan.
func (t *AssocTable) FindByComObject(comObject int) (int, error) {
	for i, a := range t.mappings {
		if a.ComObject == comObject {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

// IterByComObject walks every association referencing the given
// communication object index, via linear scan (unordered with respect to
// com-object).
func (t *AssocTable) IterByComObject(prev int, comObject int) (int, error) {
	for i := prev + 1; i < len(t.mappings); i++ {
		if t.mappings[i].ComObject == comObject {
			return i, nil
		}
	}
	return -1, ErrNotFound
}
