// Public domain.

package gcr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Query is a filter on quantity values.  The zero Query matches
// everything.
//
// Queries serve both as native filters, evaluated once per native chunk
// against its filter values, and as row filters evaluated per row.
type Query struct {
	op    string // "and", "or" or a comparison operator
	name  string
	value float64
	sub   []Query
}

var cmpOps = []string{"==", "!=", "<=", ">=", "<", ">"}

// Cmp compares quantity name to value with one of
// ==, !=, <, <=, >, >=.
func Cmp(name, op string, value float64) (Query, error) {
	for _, o := range cmpOps {
		if o == op {
			return Query{op: op, name: name, value: value}, nil
		}
	}
	return Query{}, fmt.Errorf("gcr: unknown operator %q", op)
}

// Eq is name == value.
func Eq(name string, value float64) Query {
	return Query{op: "==", name: name, value: value}
}

// Or matches when any of qs matches.  Or of nothing matches nothing.
func Or(qs ...Query) Query {
	return Query{op: "or", sub: qs}
}

// And matches when all of qs match.  Zero queries among qs are dropped.
func And(qs ...Query) Query {
	var sub []Query
	for _, q := range qs {
		if !q.IsZero() {
			sub = append(sub, q)
		}
	}
	switch len(sub) {
	case 0:
		return Query{}
	case 1:
		return sub[0]
	}
	return Query{op: "and", sub: sub}
}

// IsZero reports whether q is the match-all query.
func (q Query) IsZero() bool {
	return q.op == ""
}

// ParseQuery parses a single comparison such as "mag_r_lsst <= 29" or
// "healpix_pixel==10".
func ParseQuery(s string) (Query, error) {
	for _, op := range cmpOps {
		i := strings.Index(s, op)
		if i < 0 {
			continue
		}
		name := strings.TrimSpace(s[:i])
		v, err := strconv.ParseFloat(strings.TrimSpace(s[i+len(op):]), 64)
		if err != nil || name == "" {
			return Query{}, fmt.Errorf("gcr: invalid query %q", s)
		}
		return Query{op: op, name: name, value: v}, nil
	}
	return Query{}, fmt.Errorf("gcr: invalid query %q", s)
}

// Quantities returns the sorted names q refers to.
func (q Query) Quantities() []string {
	set := map[string]bool{}
	q.collect(set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (q Query) collect(set map[string]bool) {
	if q.name != "" {
		set[q.name] = true
	}
	for _, s := range q.sub {
		s.collect(set)
	}
}

func (q Query) String() string {
	switch q.op {
	case "":
		return "all"
	case "and", "or":
		parts := make([]string, len(q.sub))
		for i, s := range q.sub {
			parts[i] = s.String()
		}
		sep := " & "
		if q.op == "or" {
			sep = " | "
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return q.name + q.op + strconv.FormatFloat(q.value, 'g', -1, 64)
}

// Eval evaluates q with values from get.  It is an error for get to
// lack a quantity q refers to.
func (q Query) Eval(get func(name string) (float64, bool)) (bool, error) {
	switch q.op {
	case "":
		return true, nil
	case "and":
		for _, s := range q.sub {
			if ok, err := s.Eval(get); err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case "or":
		for _, s := range q.sub {
			if ok, err := s.Eval(get); err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	v, ok := get(q.name)
	if !ok {
		return false, fmt.Errorf("gcr: %w: %s", ErrNoQuantity, q.name)
	}
	switch q.op {
	case "==":
		return v == q.value, nil
	case "!=":
		return v != q.value, nil
	case "<":
		return v < q.value, nil
	case "<=":
		return v <= q.value, nil
	case ">":
		return v > q.value, nil
	}
	return v >= q.value, nil
}

// Mask evaluates q on every row of t.
func (q Query) Mask(t Table) ([]bool, error) {
	n := t.Len()
	mask := make([]bool, n)
	row := 0
	get := func(name string) (float64, bool) {
		c, ok := t[name]
		if !ok {
			return 0, false
		}
		return floatAt(c, row)
	}
	for ; row < n; row++ {
		ok, err := q.Eval(get)
		if err != nil {
			return nil, err
		}
		mask[row] = ok
	}
	return mask, nil
}

// Indices returns the indices of the true elements of mask.
func Indices(mask []bool) []int {
	var idx []int
	for i, m := range mask {
		if m {
			idx = append(idx, i)
		}
	}
	return idx
}
