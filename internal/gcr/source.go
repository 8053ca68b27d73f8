// Public domain.

package gcr

import (
	"fmt"
)

// Source supplies the native quantities of a catalog, one chunk at a
// time.
type Source interface {
	NativeQuantities() []string
	NativeFilterQuantities() []string
	Chunks() ([]Chunk, error)
}

// Chunk is one native unit of a catalog, such as one healpixel file.
type Chunk interface {
	// NativeFilterValues returns the values native filters test.
	NativeFilterValues() map[string]float64
	// Read returns the named native columns of the chunk.
	Read(names []string) (Table, error)
}

// MemoryChunk is a chunk held in memory.
type MemoryChunk struct {
	Filter map[string]float64
	Data   Table
}

func (c MemoryChunk) NativeFilterValues() map[string]float64 { return c.Filter }

func (c MemoryChunk) Read(names []string) (Table, error) {
	t := make(Table, len(names))
	for _, n := range names {
		col, ok := c.Data[n]
		if !ok {
			return nil, fmt.Errorf("%w: native %s", ErrNoQuantity, n)
		}
		t[n] = col
	}
	return t, nil
}

// Memory is a Source of in-memory chunks.
type Memory []MemoryChunk

func (m Memory) NativeQuantities() []string {
	set := map[string]bool{}
	for _, c := range m {
		for n := range c.Data {
			set[n] = true
		}
	}
	return sortedKeys(set)
}

func (m Memory) NativeFilterQuantities() []string {
	set := map[string]bool{}
	for _, c := range m {
		for n := range c.Filter {
			set[n] = true
		}
	}
	return sortedKeys(set)
}

func (m Memory) Chunks() ([]Chunk, error) {
	cs := make([]Chunk, len(m))
	for i, c := range m {
		cs[i] = c
	}
	return cs, nil
}

// CompositeSubclass is the subclass name reported by composite catalogs.
const CompositeSubclass = "composite.CompositeReader"

// Composite is the row-aligned union of member sources.  Chunk i of the
// composite is chunk i of every member; a quantity present in more than
// one member is read from the last.  Native filters test the values of
// the first member.
type Composite []Source

func (c Composite) owners() map[string]int {
	own := map[string]int{}
	for i, s := range c {
		for _, n := range s.NativeQuantities() {
			own[n] = i
		}
	}
	return own
}

func (c Composite) NativeQuantities() []string {
	set := map[string]bool{}
	for n := range c.owners() {
		set[n] = true
	}
	return sortedKeys(set)
}

func (c Composite) NativeFilterQuantities() []string {
	if len(c) == 0 {
		return nil
	}
	return c[0].NativeFilterQuantities()
}

func (c Composite) Chunks() ([]Chunk, error) {
	if len(c) == 0 {
		return nil, nil
	}
	per := make([][]Chunk, len(c))
	for i, s := range c {
		cs, err := s.Chunks()
		if err != nil {
			return nil, err
		}
		if i > 0 && len(cs) != len(per[0]) {
			return nil, fmt.Errorf("composite member %d has %d chunks, want %d",
				i, len(cs), len(per[0]))
		}
		per[i] = cs
	}
	own := c.owners()
	out := make([]Chunk, len(per[0]))
	for j := range out {
		m := make([]Chunk, len(c))
		for i := range c {
			m[i] = per[i][j]
		}
		out[j] = compositeChunk{members: m, owners: own}
	}
	return out, nil
}

type compositeChunk struct {
	members []Chunk
	owners  map[string]int
}

func (c compositeChunk) NativeFilterValues() map[string]float64 {
	return c.members[0].NativeFilterValues()
}

func (c compositeChunk) Read(names []string) (Table, error) {
	byMember := make([][]string, len(c.members))
	for _, n := range names {
		i, ok := c.owners[n]
		if !ok {
			return nil, fmt.Errorf("%w: native %s", ErrNoQuantity, n)
		}
		byMember[i] = append(byMember[i], n)
	}
	out := make(Table, len(names))
	rows := -1
	for i, ns := range byMember {
		if len(ns) == 0 {
			continue
		}
		t, err := c.members[i].Read(ns)
		if err != nil {
			return nil, err
		}
		if n := t.Len(); rows < 0 {
			rows = n
		} else if n != rows {
			return nil, fmt.Errorf("composite member %d has %d rows, want %d",
				i, n, rows)
		}
		for n, col := range t {
			out[n] = col
		}
	}
	return out, nil
}
