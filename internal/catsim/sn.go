// Public domain.

package catsim

import (
	"context"
	"sort"

	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/sky"
	"github.com/soniakeys/dc2cat/internal/snedb"
)

// SNObject is the generator view of a supernova parameter database.
type SNObject struct {
	DB *snedb.DB
	// Defaults of the columns the database does not have.
	Defaults map[string]Default
}

// SNColumns pairs generator columns with sne_params columns.
var SNColumns = []ColumnPair{
	{"raJ2000", "snra_in*PI()/180."},
	{"decJ2000", "sndec_in*PI()/180."},
	{"Tt0", "t0_in"},
	{"Tx0", "x0_in"},
	{"Tx1", "x1_in"},
	{"Tc", "c_in"},
	{"id", "snid_in"},
	{"Tredshift", "z_in"},
	{"redshift", "z_in"},
}

// NewSNObject returns an SNObject over db.
func NewSNObject(db *snedb.DB) *SNObject {
	d := map[string]Default{}
	for _, c := range []string{"varsimobjid", "runid", "ismultiple", "run", "runobjid"} {
		d[c] = Default{-1, gcr.Int}
	}
	return &SNObject{DB: db, Defaults: d}
}

func snTable(ps []snedb.Params) gcr.Table {
	n := len(ps)
	var (
		ra, dec       = make(gcr.Float64s, n), make(gcr.Float64s, n)
		t0, x0, x1, c = make(gcr.Float64s, n), make(gcr.Float64s, n), make(gcr.Float64s, n), make(gcr.Float64s, n)
		z             = make(gcr.Float64s, n)
		id            = make(gcr.Strings, n)
	)
	for i, p := range ps {
		ra[i], dec[i] = sky.Deg2Rad(p.RA), sky.Deg2Rad(p.Dec)
		t0[i], x0[i], x1[i], c[i], z[i] = p.T0, p.X0, p.X1, p.C, p.Z
		id[i] = p.SNID
	}
	return gcr.Table{
		"raJ2000": ra, "decJ2000": dec,
		"Tt0": t0, "Tx0": x0, "Tx1": x1, "Tc": c,
		"id": id, "Tredshift": z, "redshift": z,
	}
}

// QueryColumns returns an iterator over the supernovae inside obs.
func (s *SNObject) QueryColumns(ctx context.Context, colnames []string, chunkSize int, obs *ObservationMetaData) *ChunkIterator {
	cm := map[string]string{}
	for _, c := range SNColumns {
		cm[c.Name] = c.Name
	}
	for c := range s.Defaults {
		cm[c] = c
	}
	if colnames == nil {
		for c := range cm {
			colnames = append(colnames, c)
		}
		sort.Strings(colnames)
	}
	has := func(q string) bool {
		_, ok := s.Defaults[q]
		return !ok
	}
	return &ChunkIterator{
		colnames:  colnames,
		chunkSize: chunkSize,
		columnMap: cm,
		has:       has,
		defaults:  s.Defaults,
		load: func(qnames []string) (gcr.Table, error) {
			var ps []snedb.Params
			var err error
			if r, ok := obs.Radius(); ok {
				ps, err = s.DB.QueryDisc(ctx, obs.PointingRA, obs.PointingDec, r)
			} else {
				ps, err = s.DB.All(ctx)
			}
			if err != nil {
				return nil, err
			}
			return snTable(ps), nil
		},
	}
}
