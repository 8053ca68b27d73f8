// Public domain.

package dc2prog_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/dc2prog"
	"github.com/soniakeys/dc2cat/internal/instcat"
)

func run(args ...string) (string, error) {
	root := dc2prog.NewRoot()
	var b bytes.Buffer
	root.SetOut(&b)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return b.String(), err
}

func snLine(gid int, snid string, ra, dec float64) string {
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

func TestSNeChunks(t *testing.T) {
	in := t.TempDir()
	csv := "header\n" + snLine(1, "a", 55, -30) + "\n" + snLine(2, "b", 58, -30) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "sne.csv"), []byte(csv), 0o644))
	db := filepath.Join(t.TempDir(), "sne.db")
	_, err := run("snedb", in, db)
	require.NoError(t, err)

	out, err := run("chunks", "--sne", db, "--ra", "55", "--dec", "-30", "--radius", ".5",
		"--columns", "redshift,id")
	require.NoError(t, err)
	assert.Equal(t, "# id redshift\na 0.7\n", out)

	// without --columns every generator column is printed
	out, err = run("chunks", "--sne", db, "--ra", "55", "--dec", "-30", "--radius", ".5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "# Tc Tredshift Tt0 Tx0 Tx1 decJ2000 id ismultiple raJ2000 redshift run runid runobjid varsimobjid", lines[0])

	_, err = run("chunks")
	assert.Error(t, err)
}

func instanceCatalog(t *testing.T) string {
	fn := filepath.Join(t.TempDir(), "phosim_cat_42.txt")
	require.NoError(t, os.WriteFile(fn, []byte(strings.Join([]string{
		"rightascension 0",
		"declination 0",
		"rotskypos 0",
		"filter 2",
		"object 1 0 0 22 star.txt 0 0 0 0 0 0 point none none",
		"object 2 359.9 0.5 22 star.txt 0 0 0 0 0 0 point none none",
	}, "\n")+"\n"), 0o644))
	return fn
}

func outputs(t *testing.T, dir string) []string {
	m, err := filepath.Glob(filepath.Join(dir, "*_instcat.txt"))
	require.NoError(t, err)
	for i := range m {
		m[i] = filepath.Base(m[i])
	}
	return m
}

func TestTrim(t *testing.T) {
	cat := instanceCatalog(t)
	dir := t.TempDir()
	_, err := run("trim", cat, "R22_S11", "R:0,1 S:2,0", "-o", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"R01_S20_instcat.txt", "R22_S11_instcat.txt"}, outputs(t, dir))

	s, err := instcat.ParseSensor("R22_S11")
	require.NoError(t, err)
	b, err := os.ReadFile(instcat.TrimFileName(dir, s))
	require.NoError(t, err)
	assert.Contains(t, string(b), "rightascension 0\n")
	assert.Contains(t, string(b), "object 1 ")
	assert.NotContains(t, string(b), "object 2 ")

	_, err = run("trim", cat, "R00_S11", "-o", dir)
	assert.Error(t, err)
}

func TestTrimSettings(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("sensors: [R22_S11]\n"), 0o644))
	dir := t.TempDir()
	_, err := run("--settings", settings, "trim", instanceCatalog(t), "-o", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"R22_S11_instcat.txt"}, outputs(t, dir))
}

func TestArgs(t *testing.T) {
	_, err := run("sedfit", "cosmoDC2", "x")
	assert.ErrorContains(t, err, "healpixel")
	_, err = run("verify-pos", "42")
	assert.ErrorContains(t, err, "need --opsim")
	_, err = run("verify-flux", "x")
	assert.ErrorContains(t, err, "obsHistID")
	_, err = run("refcat")
	assert.Error(t, err)
}
