// Public domain.

// Package gcr models a generic catalog reader.
//
// A catalog exposes native quantities, read chunk by chunk from its
// source, plus quantity modifiers: aliases of other quantities or
// functions of them.  Queries can restrict which native chunks are read
// and which rows are returned.
package gcr

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoQuantity is returned for a quantity the catalog does not have.
	ErrNoQuantity = errors.New("no such quantity")
	// ErrExists is returned when adding a quantity that already exists.
	ErrExists = errors.New("quantity already exists")
)

// Cosmology holds the flat ΛCDM parameters of a catalog.
type Cosmology struct {
	H0  float64 `yaml:"H0"`
	Om0 float64 `yaml:"Om0"`
}

// MemberInfo names one member of a composite catalog.
type MemberInfo struct {
	CatalogName string `yaml:"catalog_name"`
}

// Info describes a catalog.
type Info struct {
	SubclassName string
	Catalogs     []MemberInfo
	Cosmology    Cosmology
}

// HasMember reports whether a composite has a member named name.
func (i Info) HasMember(name string) bool {
	for _, c := range i.Catalogs {
		if c.CatalogName == name {
			return true
		}
	}
	return false
}

// Modifier defines a quantity in terms of native quantities.
//
// A Modifier with Native set is that native quantity.  Otherwise Func
// is applied to the columns of Args.
type Modifier struct {
	Native string
	Func   DeriveFunc
	Args   []Modifier
}

// natives appends the native quantities m depends on.
func (m Modifier) natives(set map[string]bool) {
	if m.Native != "" {
		set[m.Native] = true
		return
	}
	for _, a := range m.Args {
		a.natives(set)
	}
}

func (m Modifier) eval(t Table) (Column, error) {
	if m.Native != "" {
		c, ok := t[m.Native]
		if !ok {
			return nil, fmt.Errorf("gcr: %w: native %s", ErrNoQuantity, m.Native)
		}
		return c, nil
	}
	args := make([]Column, len(m.Args))
	for i, a := range m.Args {
		c, err := a.eval(t)
		if err != nil {
			return nil, err
		}
		args[i] = c
	}
	return m.Func(args...)
}

// Catalog is the interface of a catalog reader.
type Catalog interface {
	Name() string
	Info() Info
	HasQuantity(name string) bool
	ListAllQuantities(includeNative bool) []string
	ListAllNativeQuantities() []string
	NativeFilterQuantities() []string
	GetQuantities(names []string, filter, nativeFilter Query) (Table, error)
	AddQuantityModifier(name string, m Modifier, overwrite bool) error
	GetQuantityModifier(name string) (Modifier, error)
	AddDerivedQuantity(name string, f DeriveFunc, deps ...string) error
	AddModifierOnDerivedQuantities(name string, f DeriveFunc, deps ...string) error
}

// Reader is a Catalog over a Source.
type Reader struct {
	name      string
	info      Info
	src       Source
	natives   map[string]bool
	modifiers map[string]Modifier
}

var _ Catalog = (*Reader)(nil)

// NewReader returns a Reader for src with no quantity modifiers.
func NewReader(name string, info Info, src Source) *Reader {
	r := &Reader{
		name:      name,
		info:      info,
		src:       src,
		natives:   map[string]bool{},
		modifiers: map[string]Modifier{},
	}
	for _, q := range src.NativeQuantities() {
		r.natives[q] = true
	}
	return r
}

func (r *Reader) Name() string { return r.name }
func (r *Reader) Info() Info   { return r.info }

func (r *Reader) HasQuantity(name string) bool {
	_, ok := r.modifiers[name]
	return ok || r.natives[name]
}

// ListAllQuantities returns sorted quantity names, natives included when
// includeNative is set.
func (r *Reader) ListAllQuantities(includeNative bool) []string {
	set := map[string]bool{}
	for n := range r.modifiers {
		set[n] = true
	}
	if includeNative {
		for n := range r.natives {
			set[n] = true
		}
	}
	return sortedKeys(set)
}

func (r *Reader) ListAllNativeQuantities() []string {
	return sortedKeys(r.natives)
}

func (r *Reader) NativeFilterQuantities() []string {
	return r.src.NativeFilterQuantities()
}

func sortedKeys(set map[string]bool) []string {
	s := make([]string, 0, len(set))
	for n := range set {
		s = append(s, n)
	}
	sort.Strings(s)
	return s
}

// GetQuantityModifier returns the modifier defining name.  A native
// quantity without a modifier is returned as itself.
func (r *Reader) GetQuantityModifier(name string) (Modifier, error) {
	if m, ok := r.modifiers[name]; ok {
		return m, nil
	}
	if r.natives[name] {
		return Modifier{Native: name}, nil
	}
	return Modifier{}, fmt.Errorf("gcr: %s: %w: %s", r.name, ErrNoQuantity, name)
}

// AddQuantityModifier defines quantity name by m.  Without overwrite an
// existing modifier of the same name is an error.
func (r *Reader) AddQuantityModifier(name string, m Modifier, overwrite bool) error {
	if _, ok := r.modifiers[name]; ok && !overwrite {
		return fmt.Errorf("gcr: %s: %w: %s", r.name, ErrExists, name)
	}
	set := map[string]bool{}
	m.natives(set)
	for n := range set {
		if !r.natives[n] {
			return fmt.Errorf("gcr: %s: modifier of %s: %w: native %s",
				r.name, name, ErrNoQuantity, n)
		}
	}
	if m.Native == "" && m.Func == nil {
		return fmt.Errorf("gcr: %s: empty modifier for %s", r.name, name)
	}
	r.modifiers[name] = m
	return nil
}

// AddDerivedQuantity defines name as f of the quantities deps.  Deps are
// resolved when the quantity is added, so a later change to one of them
// does not affect name.
func (r *Reader) AddDerivedQuantity(name string, f DeriveFunc, deps ...string) error {
	if _, ok := r.modifiers[name]; ok {
		return fmt.Errorf("gcr: %s: %w: %s", r.name, ErrExists, name)
	}
	args := make([]Modifier, len(deps))
	for i, d := range deps {
		m, err := r.GetQuantityModifier(d)
		if err != nil {
			return err
		}
		args[i] = m
	}
	r.modifiers[name] = Modifier{Func: f, Args: args}
	return nil
}

// AddModifierOnDerivedQuantities is AddDerivedQuantity under the name
// older catalog code uses.
func (r *Reader) AddModifierOnDerivedQuantities(name string, f DeriveFunc, deps ...string) error {
	return r.AddDerivedQuantity(name, f, deps...)
}

// GetQuantities reads names from every native chunk passing nativeFilter,
// keeping the rows that pass filter.
func (r *Reader) GetQuantities(names []string, filter, nativeFilter Query) (Table, error) {
	want := make(map[string]Modifier, len(names))
	for _, n := range names {
		m, err := r.GetQuantityModifier(n)
		if err != nil {
			return nil, err
		}
		want[n] = m
	}
	fq := filter.Quantities()
	fmods := make(map[string]Modifier, len(fq))
	for _, n := range fq {
		m, err := r.GetQuantityModifier(n)
		if err != nil {
			return nil, err
		}
		fmods[n] = m
	}
	set := map[string]bool{}
	for _, m := range want {
		m.natives(set)
	}
	for _, m := range fmods {
		m.natives(set)
	}
	natives := sortedKeys(set)

	chunks, err := r.src.Chunks()
	if err != nil {
		return nil, fmt.Errorf("gcr: %s: %w", r.name, err)
	}
	out := make(Table, len(names))
	for _, ch := range chunks {
		if !nativeFilter.IsZero() {
			vals := ch.NativeFilterValues()
			ok, err := nativeFilter.Eval(func(n string) (float64, bool) {
				v, ok := vals[n]
				return v, ok
			})
			if err != nil {
				return nil, fmt.Errorf("gcr: %s: native filter: %w", r.name, err)
			}
			if !ok {
				continue
			}
		}
		raw, err := ch.Read(natives)
		if err != nil {
			return nil, fmt.Errorf("gcr: %s: %w", r.name, err)
		}
		part, err := evalAll(want, raw)
		if err != nil {
			return nil, fmt.Errorf("gcr: %s: %w", r.name, err)
		}
		if !filter.IsZero() {
			ft, err := evalAll(fmods, raw)
			if err != nil {
				return nil, fmt.Errorf("gcr: %s: %w", r.name, err)
			}
			mask, err := filter.Mask(ft)
			if err != nil {
				return nil, fmt.Errorf("gcr: %s: filter: %w", r.name, err)
			}
			part = part.Take(Indices(mask))
		}
		for n, c := range part {
			if out[n], err = Append(out[n], c); err != nil {
				return nil, fmt.Errorf("gcr: %s: %s: %w", r.name, n, err)
			}
		}
	}
	for _, n := range names {
		if out[n] == nil {
			out[n] = Float64s{}
		}
	}
	return out, nil
}

func evalAll(mods map[string]Modifier, raw Table) (Table, error) {
	t := make(Table, len(mods))
	for n, m := range mods {
		c, err := m.eval(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		t[n] = c
	}
	return t, nil
}
