// Public domain.

package snedb_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/htm"
	"github.com/soniakeys/dc2cat/internal/sky"
	"github.com/soniakeys/dc2cat/internal/snedb"
)

func ExampleParseLine() {
	p, err := snedb.ParseLine("1000,0.1,24.5,MS_9940_3,61000.5,1e-6,0.3,0.45,53.1,-28.2")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(p.GalaxyID, p.SNID, p.Z, p.RA, p.Dec)
	// Output:
	// 1000 MS_9940_3 0.45 53.1 -28.2
}

func line23(gid int, snid string, ra, dec float64) string {
	f := make([]string, 23)
	for i := range f {
		f[i] = "0"
	}
	f[0] = fmt.Sprint(gid)
	f[1], f[2], f[3], f[4], f[5] = "0.1", "25", "60000", "2e-6", "-0.5"
	f[11] = "0.7"
	f[20] = snid
	f[21], f[22] = fmt.Sprint(ra), fmt.Sprint(dec)
	return strings.Join(f, ",")
}

func TestParseLine(t *testing.T) {
	p, err := snedb.ParseLine(line23(7, "sn7", 55, -30))
	require.NoError(t, err)
	assert.Equal(t, snedb.Params{
		HtmID: p.HtmID, GalaxyID: 7, C: .1, MB: 25, T0: 60000, X0: 2e-6,
		X1: -.5, Z: .7, SNID: "sn7", RA: 55, Dec: -30,
	}, p)
	want, _ := htm.FindHtmid(55, -30, 6)
	assert.Equal(t, want, p.HtmID)
	assert.Equal(t, 6, htm.Level(p.HtmID))

	_, err = snedb.ParseLine("1,2,3")
	assert.ErrorContains(t, err, "could not parse line")
	_, err = snedb.ParseLine("x,0.1,24.5,s,1,2,3,4,5,6")
	assert.Error(t, err)
}

func TestCreateAndQuery(t *testing.T) {
	in := t.TempDir()
	csv1 := "header\n" + line23(1, "a", 55, -30) + "\n" + line23(2, "b", 55.5, -30) + "\n"
	csv2 := "header\n1000,0.1,24.5,c,61000.5,1e-6,0.3,0.45,80,10\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "one.csv"), []byte(csv1), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "two.csv"), []byte(csv2), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644))

	out := filepath.Join(t.TempDir(), "sne.db")
	ctx := context.Background()
	require.NoError(t, snedb.Create(ctx, out, in, nil))
	assert.ErrorIs(t, snedb.Create(ctx, out, in, nil), snedb.ErrExists)
	assert.ErrorIs(t, snedb.Create(ctx, "", in, nil), snedb.ErrArgs)

	db, err := snedb.Open(out)
	require.NoError(t, err)
	defer db.Close()
	all, err := db.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ps, err := db.QueryDisc(ctx, sky.Deg2Rad(55), sky.Deg2Rad(-30), sky.Deg2Rad(.1))
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "a", ps[0].SNID)

	ps, err = db.QueryDisc(ctx, sky.Deg2Rad(55), sky.Deg2Rad(-30), sky.Deg2Rad(1))
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}

func TestCreateBadLine(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.csv"),
		[]byte("header\n1,2,3\n"), 0o644))
	err := snedb.Create(context.Background(), filepath.Join(t.TempDir(), "x.db"), in, nil)
	assert.ErrorContains(t, err, "could not parse line")
}

func TestOpenMissing(t *testing.T) {
	_, err := snedb.Open(filepath.Join(t.TempDir(), "none.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
