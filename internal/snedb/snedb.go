// Public domain.

// Package snedb loads supernova parameter tables into an SQLite database
// indexed by level 6 HTM id, and queries it by position.
package snedb

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/soniakeys/dc2cat/internal/htm"
	"github.com/soniakeys/dc2cat/internal/sky"
)

// HtmidLevel is the HTM level of the htmid_level_6 column.
const HtmidLevel = 6

var (
	// ErrExists is returned by Create when the output file exists.
	ErrExists = errors.New("output file already exists")
	// ErrArgs is returned by Create for an empty file or directory name.
	ErrArgs = errors.New("must specify output file and input directory")
)

const createTable = `CREATE TABLE sne_params (
	htmid_level_6 int,
	galaxy_id int,
	c_in real,
	mB real,
	t0_in real,
	x0_in real,
	x1_in real,
	z_in real,
	snid_in text,
	snra_in real,
	sndec_in real)`

const insertRow = `INSERT INTO sne_params VALUES(?,?,?,?,?,?,?,?,?,?,?)`

const createIndex = `CREATE INDEX htmid_index ON sne_params (htmid_level_6)`

// Params is one row of sne_params.  RA and Dec are in degrees.
type Params struct {
	HtmID    int64
	GalaxyID int64
	C        float64
	MB       float64
	T0       float64
	X0       float64
	X1       float64
	Z        float64
	SNID     string
	RA       float64
	Dec      float64
}

func (p *Params) args() []interface{} {
	return []interface{}{p.HtmID, p.GalaxyID, p.C, p.MB, p.T0, p.X0, p.X1,
		p.Z, p.SNID, p.RA, p.Dec}
}

// ParseLine parses one CSV data line.
//
// Two layouts are accepted.  23 fields:  galaxy id, c, mB, t0, x0, x1 in
// fields 0-5, z in 11, SN id in 20, RA and Dec in 21 and 22.  10 fields:
// galaxy id, c, mB, SN id, t0, x0, x1, z, RA, Dec.
func ParseLine(line string) (p Params, err error) {
	f := strings.Split(strings.TrimSpace(line), ",")
	var fl []float64
	num := func(ix ...int) {
		for _, i := range ix {
			var x float64
			if err == nil {
				x, err = strconv.ParseFloat(strings.TrimSpace(f[i]), 64)
			}
			fl = append(fl, x)
		}
	}
	switch len(f) {
	case 23:
		num(1, 2, 3, 4, 5, 11, 21, 22)
		p.SNID = f[20]
	case 10:
		num(1, 2, 4, 5, 6, 7, 8, 9)
		p.SNID = f[3]
	default:
		return p, fmt.Errorf("could not parse line %q: %d fields", line, len(f))
	}
	if err == nil {
		p.GalaxyID, err = strconv.ParseInt(strings.TrimSpace(f[0]), 10, 64)
	}
	if err != nil {
		return p, fmt.Errorf("could not parse line %q: %w", line, err)
	}
	p.C, p.MB, p.T0, p.X0, p.X1, p.Z, p.RA, p.Dec =
		fl[0], fl[1], fl[2], fl[3], fl[4], fl[5], fl[6], fl[7]
	p.HtmID, err = htm.FindHtmid(p.RA, p.Dec, HtmidLevel)
	return p, err
}

// Create writes a new database outFile from every file in inDir whose
// name ends in "csv".  The first line of each file is a header.
//
// Each file is loaded in one transaction; the htmid index is built after
// the last file.
func Create(ctx context.Context, outFile, inDir string, log *zap.Logger) error {
	if outFile == "" || inDir == "" {
		return ErrArgs
	}
	if log == nil {
		log = zap.NewNop()
	}
	ents, err := os.ReadDir(inDir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(outFile); err == nil {
		return fmt.Errorf("%s: %w", outFile, ErrExists)
	}
	db, err := sql.Open("sqlite", outFile)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return err
	}
	start := time.Now()
	for i, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "csv") {
			continue
		}
		hours := time.Since(start).Hours()
		log.Info("reading",
			zap.String("file", e.Name()),
			zap.Float64("elapsed_hours", hours),
			zap.Float64("predicted_hours", hours/float64(i+1)*float64(len(ents))))
		if err := loadFile(ctx, db, filepath.Join(inDir, e.Name())); err != nil {
			return err
		}
	}
	if _, err := db.ExecContext(ctx, createIndex); err != nil {
		return err
	}
	log.Debug("index created", zap.Duration("total", time.Since(start)))
	return nil
}

func loadFile(ctx context.Context, db *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var rows []Params
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, 1<<20)
	for first := true; sc.Scan(); first = false {
		if first || strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		p, err := ParseLine(sc.Text())
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, p)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	st, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return err
	}
	defer st.Close()
	for i := range rows {
		if _, err := st.ExecContext(ctx, rows[i].args()...); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return tx.Commit()
}

// DB is an open SNe parameter database.
type DB struct {
	db *sql.DB
}

// Open opens an existing database.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

const selectCols = `SELECT htmid_level_6, galaxy_id, c_in, mB, t0_in, x0_in,
	x1_in, z_in, snid_in, snra_in, sndec_in FROM sne_params`

func (d *DB) query(ctx context.Context, q string, args ...interface{}) ([]Params, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ps []Params
	for rows.Next() {
		var p Params
		if err := rows.Scan(&p.HtmID, &p.GalaxyID, &p.C, &p.MB, &p.T0, &p.X0,
			&p.X1, &p.Z, &p.SNID, &p.RA, &p.Dec); err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// All returns every row.
func (d *DB) All(ctx context.Context) ([]Params, error) {
	return d.query(ctx, selectCols)
}

// QueryDisc returns the rows within radius of ra, dec, all in radians.
//
// Candidate rows come from the htmid ranges covering the disc; each is
// then tested by exact separation.
func (d *DB) QueryDisc(ctx context.Context, ra, dec, radius float64) ([]Params, error) {
	rs, err := htm.CoverDisc(sky.Rad2Deg(ra), sky.Rad2Deg(dec), radius, HtmidLevel)
	if err != nil {
		return nil, err
	}
	var out []Params
	for _, r := range rs {
		ps, err := d.query(ctx, selectCols+` WHERE htmid_level_6 BETWEEN ? AND ?`,
			r.Lo, r.Hi)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if sky.Separation(sky.Deg2Rad(p.RA), sky.Deg2Rad(p.Dec), ra, dec) < radius {
				out = append(out, p)
			}
		}
	}
	return out, nil
}
