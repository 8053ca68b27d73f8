// Public domain.

package gcr

import (
	"fmt"
	"math"
)

// Kind is the element type of a Column.
type Kind int

const (
	Float Kind = iota
	Int
	String
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case String:
		return "string"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Column holds the values of one quantity.
type Column interface {
	Len() int
	Kind() Kind
	// Take returns the rows at idx, in idx order.
	Take(idx []int) Column
}

type (
	Float64s []float64
	Int64s   []int64
	Strings  []string
)

func (c Float64s) Len() int { return len(c) }
func (c Int64s) Len() int   { return len(c) }
func (c Strings) Len() int  { return len(c) }
func (Float64s) Kind() Kind { return Float }
func (Int64s) Kind() Kind   { return Int }
func (Strings) Kind() Kind  { return String }

func (c Float64s) Take(idx []int) Column {
	t := make(Float64s, len(idx))
	for i, x := range idx {
		t[i] = c[x]
	}
	return t
}

func (c Int64s) Take(idx []int) Column {
	t := make(Int64s, len(idx))
	for i, x := range idx {
		t[i] = c[x]
	}
	return t
}

func (c Strings) Take(idx []int) Column {
	t := make(Strings, len(idx))
	for i, x := range idx {
		t[i] = c[x]
	}
	return t
}

// Table is a set of equal length columns keyed by quantity name.
type Table map[string]Column

// Len returns the common column length, 0 for an empty table.
func (t Table) Len() int {
	for _, c := range t {
		return c.Len()
	}
	return 0
}

// Take returns the rows at idx of every column.
func (t Table) Take(idx []int) Table {
	o := make(Table, len(t))
	for n, c := range t {
		o[n] = c.Take(idx)
	}
	return o
}

// AsFloat64s returns c as floats.  Ints convert, strings are an error.
func AsFloat64s(c Column) (Float64s, error) {
	switch c := c.(type) {
	case Float64s:
		return c, nil
	case Int64s:
		f := make(Float64s, len(c))
		for i, x := range c {
			f[i] = float64(x)
		}
		return f, nil
	}
	return nil, fmt.Errorf("gcr: %v column is not numeric", c.Kind())
}

// floatAt returns row i of a numeric column.
func floatAt(c Column, i int) (float64, bool) {
	switch c := c.(type) {
	case Float64s:
		return c[i], true
	case Int64s:
		return float64(c[i]), true
	}
	return math.NaN(), false
}

// Append returns a followed by b.  An empty a takes the kind of b.
func Append(a, b Column) (Column, error) {
	if a == nil || a.Len() == 0 {
		return b, nil
	}
	if b == nil || b.Len() == 0 {
		return a, nil
	}
	switch a := a.(type) {
	case Float64s:
		if b, ok := b.(Float64s); ok {
			return append(a[:len(a):len(a)], b...), nil
		}
		// mixed int and float chunks concatenate as floats
		if bf, err := AsFloat64s(b); err == nil {
			return append(a[:len(a):len(a)], bf...), nil
		}
	case Int64s:
		switch b := b.(type) {
		case Int64s:
			return append(a[:len(a):len(a)], b...), nil
		case Float64s:
			af, _ := AsFloat64s(a)
			return append(af, b...), nil
		}
	case Strings:
		if b, ok := b.(Strings); ok {
			return append(a[:len(a):len(a)], b...), nil
		}
	}
	return nil, fmt.Errorf("gcr: cannot append %v column to %v column",
		b.Kind(), a.Kind())
}

// DeriveFunc computes a quantity from the columns of its dependencies.
type DeriveFunc func(args ...Column) (Column, error)

// MapFloat lifts an elementwise function of one numeric column.
func MapFloat(f func(float64) float64) DeriveFunc {
	return func(args ...Column) (Column, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("gcr: want 1 argument, got %d", len(args))
		}
		x, err := AsFloat64s(args[0])
		if err != nil {
			return nil, err
		}
		out := make(Float64s, len(x))
		for i, v := range x {
			out[i] = f(v)
		}
		return out, nil
	}
}

// MapFloat2 lifts an elementwise function of two numeric columns.
func MapFloat2(f func(x, y float64) float64) DeriveFunc {
	return func(args ...Column) (Column, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("gcr: want 2 arguments, got %d", len(args))
		}
		x, err := AsFloat64s(args[0])
		if err != nil {
			return nil, err
		}
		y, err := AsFloat64s(args[1])
		if err != nil {
			return nil, err
		}
		if len(x) != len(y) {
			return nil, fmt.Errorf("gcr: column lengths %d and %d differ",
				len(x), len(y))
		}
		out := make(Float64s, len(x))
		for i := range x {
			out[i] = f(x[i], y[i])
		}
		return out, nil
	}
}

// Identity passes its single argument through.
func Identity(args ...Column) (Column, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("gcr: want 1 argument, got %d", len(args))
	}
	return args[0], nil
}
