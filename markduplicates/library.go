package markduplicates

import "github.com/biogo/hts/sam"

var rgTag = sam.NewTag("RG")

// libraryTable resolves a record's read group to a numeric library id.
// It is built once from the BAM header and is read-only for the rest
// of the run: pass 1 workers, were there more than one, could share it
// without locking.
//
// Library id 0 is the empty-library sentinel: reads lacking a read
// group, or whose read group lacks an LB tag, or whose LB tag is the
// empty string, all collapse to it. This deliberately does not split
// such reads into separate per-read-group libraries.
type libraryTable struct {
	rgToLibID map[string]int32
}

func newLibraryTable(h *sam.Header) *libraryTable {
	t := &libraryTable{rgToLibID: make(map[string]int32)}
	nameToID := make(map[string]int32)
	nextID := int32(1)
	for _, rg := range h.RGs() {
		lib := rg.Library()
		if lib == "" {
			t.rgToLibID[rg.Name()] = emptyLibID
			continue
		}
		id, ok := nameToID[lib]
		if !ok {
			id = nextID
			nameToID[lib] = id
			nextID++
		}
		t.rgToLibID[rg.Name()] = id
	}
	return t
}

// lookup returns the library id for r. Records without an RG tag, or
// whose RG tag names a read group absent from the header, map to
// emptyLibID.
func (t *libraryTable) lookup(r *sam.Record) int32 {
	aux := r.AuxFields.Get(rgTag)
	if aux == nil {
		return emptyLibID
	}
	name, ok := aux.Value().(string)
	if !ok {
		return emptyLibID
	}
	if id, ok := t.rgToLibID[name]; ok {
		return id
	}
	return emptyLibID
}
