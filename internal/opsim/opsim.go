// Public domain.

// Package opsim looks up telescope pointings in an OpSim database.
package opsim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/soniakeys/dc2cat/internal/catsim"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// ErrNoPointing is returned for an obsHistID not in the database.
var ErrNoPointing = errors.New("no such pointing")

const selectPointing = `SELECT descDitheredRA, descDitheredDec, fieldRA, fieldDec,
	filter, expMJD, rotSkyPos FROM Summary WHERE obsHistID = ? LIMIT 1`

// Pointing is one visit.  Angles are radians.
type Pointing struct {
	ObsHistID int64
	RA, Dec   float64
	// Dithered is false when the visit had no dithered position and RA,
	// Dec are the field center.
	Dithered  bool
	Filter    string
	MJD       float64
	RotSkyPos float64
}

// DB is an open OpSim database.
type DB struct {
	db *sql.DB
}

// Open opens the OpSim database at path read only.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &DB{db}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Pointing returns visit obsHistID.
func (d *DB) Pointing(ctx context.Context, obsHistID int64) (*Pointing, error) {
	var dra, ddec sql.NullFloat64
	p := &Pointing{ObsHistID: obsHistID}
	err := d.db.QueryRowContext(ctx, selectPointing, obsHistID).Scan(
		&dra, &ddec, &p.RA, &p.Dec, &p.Filter, &p.MJD, &p.RotSkyPos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("obsHistID %d: %w", obsHistID, ErrNoPointing)
	}
	if err != nil {
		return nil, err
	}
	if dra.Valid && ddec.Valid {
		p.RA, p.Dec, p.Dithered = dra.Float64, ddec.Float64, true
	}
	return p, nil
}

// ObservationMetaData returns the pointing bounded by a circle of radius
// degrees.
func (p *Pointing) ObservationMetaData(radius float64) *catsim.ObservationMetaData {
	return &catsim.ObservationMetaData{
		PointingRA:  p.RA,
		PointingDec: p.Dec,
		BoundType:   catsim.Circle,
		BoundLength: []float64{sky.Deg2Rad(radius)},
		RotSkyPos:   p.RotSkyPos,
		MJD:         p.MJD,
		Bandpass:    p.Filter,
	}
}
