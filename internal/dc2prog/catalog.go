// Public domain.

package dc2prog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soniakeys/dc2cat/internal/catsim"
	"github.com/soniakeys/dc2cat/internal/gcr"
	"github.com/soniakeys/dc2cat/internal/sed"
	"github.com/soniakeys/dc2cat/internal/sedfit"
	"github.com/soniakeys/dc2cat/internal/snedb"
)

func (a *app) snedbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snedb <csv dir> [output db]",
		Short: "Load supernova parameter CSV files into an sqlite database",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := filepath.Join(a.env.ScratchDir(), "sne_params.db")
			if len(args) == 2 {
				out = args[1]
			}
			if err := snedb.Create(cmd.Context(), out, args[0], a.log); err != nil {
				return err
			}
			a.log.Info("created", zap.String("db", out))
			return nil
		},
	}
}

func (a *app) sedgridCmd() *cobra.Command {
	var (
		out     string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "sedgrid <catalog>",
		Short: "Build the dusted template grid matching a catalog's tophats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(args[0])
			if err != nil {
				return err
			}
			f, err := sedfit.FilterNamesFromCatalog(cat)
			if err != nil {
				return err
			}
			dir, err := a.env.SEDDir()
			if err != nil {
				return err
			}
			names, err := sedfit.LibraryTemplates(dir)
			if err != nil {
				return err
			}
			g, err := sedfit.BuildGrid(cmd.Context(), sed.NewCache(dir), names, f["disk"],
				sedfit.DefaultAv, sedfit.DefaultRv, workers, a.log)
			if err != nil {
				return err
			}
			if err := g.WriteFile(out); err != nil {
				return err
			}
			a.log.Info("grid written", zap.String("file", out), zap.Int("entries", len(g.Entries)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", sedfit.GridFile, "grid file")
	cmd.Flags().IntVar(&workers, "workers", defaultWorkers(), "concurrent templates")
	return cmd
}

func (a *app) sedfitCmd() *cobra.Command {
	var (
		grid    string
		outDir  string
		limit   int
		slices  int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "sedfit <catalog> <healpixel>",
		Short: "Fit SEDs and dust to the galaxies of one healpixel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hp, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("healpixel %q: %w", args[1], err)
			}
			cat, err := a.loadCatalog(args[0])
			if err != nil {
				return err
			}
			g, built, err := sedfit.ReadGrid(grid)
			if err != nil {
				return err
			}
			a.log.Info("grid", zap.String("file", grid), zap.Time("built", built))
			sedDir, err := a.env.SEDDir()
			if err != nil {
				return err
			}
			bpDir, err := a.env.BandpassDir()
			if err != nil {
				return err
			}
			total, _, err := sed.LoadLSSTBandpasses(bpDir)
			if err != nil {
				return err
			}
			f, err := sedfit.NewFitter(g, sed.NewCache(sedDir), total, cat.Info().Cosmology)
			if err != nil {
				return err
			}
			j := &sedfit.Job{
				Catalog: cat,
				Fitter:  f,
				Healpix: hp,
				Limit:   limit,
				Slices:  slices,
				Workers: workers,
				Log:     a.log,
			}
			res, err := j.Run(cmd.Context())
			if err != nil {
				return err
			}
			fn := filepath.Join(outDir, fmt.Sprintf("sed_fit_%d.fits", hp))
			w, err := os.Create(fn)
			if err != nil {
				return err
			}
			if err = res.WriteFITS(w); err != nil {
				w.Close()
				return err
			}
			if err = w.Close(); err != nil {
				return err
			}
			a.log.Info("fits written", zap.String("file", fn), zap.Int("galaxies", len(res.GalaxyID)))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&grid, "grid", sedfit.GridFile, "template grid file")
	fl.StringVarP(&outDir, "out-dir", "o", ".", "output directory")
	fl.IntVar(&limit, "limit", 0, "fit only the first galaxies")
	fl.IntVar(&slices, "slices", sedfit.DefaultSlices, "work units per component")
	fl.IntVar(&workers, "workers", defaultWorkers(), "concurrent fits")
	return cmd
}

// variants of the chunks command, by name.
var variants = map[string]catsim.Variant{
	"bulge": catsim.Bulge,
	"disk":  catsim.Disk,
	"knots": catsim.Knots,
	"star":  catsim.Star,
}

func (a *app) chunksCmd() *cobra.Command {
	var (
		variant   string
		sneDB     string
		ra, dec   float64
		radius    float64
		columns   []string
		chunkSize int
	)
	cmd := &cobra.Command{
		Use:   "chunks [catalog]",
		Short: "Print generator columns of a catalog inside a field",
		Long: `chunks prints the generator view of a catalog, or of a supernova
database with --sne, one row per object.  A radius of 0 selects the
whole catalog.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var obs *catsim.ObservationMetaData
			if radius > 0 {
				obs = catsim.NewObservationMetaData(ra, dec, catsim.Circle, radius)
				logPointing(a.log, obs)
			}
			var it *catsim.ChunkIterator
			switch {
			case sneDB != "":
				db, err := snedb.Open(sneDB)
				if err != nil {
					return err
				}
				defer db.Close()
				it = catsim.NewSNObject(db).QueryColumns(cmd.Context(), columns, chunkSize, obs)
			case len(args) == 1:
				v, ok := variants[variant]
				if !ok {
					return fmt.Errorf("unknown variant %q", variant)
				}
				reg, err := a.registry()
				if err != nil {
					return err
				}
				o, err := catsim.New(catsim.NewCache(reg), args[0], v, nil)
				if err != nil {
					return err
				}
				it = o.QueryColumns(columns, chunkSize, obs)
			default:
				return errors.New("need a catalog or --sne")
			}
			return printChunks(cmd.OutOrStdout(), it)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&variant, "variant", "disk", "bulge, disk, knots, or star")
	fl.StringVar(&sneDB, "sne", "", "supernova parameter database")
	fl.Float64Var(&ra, "ra", 0, "field center RA, degrees")
	fl.Float64Var(&dec, "dec", 0, "field center Dec, degrees")
	fl.Float64Var(&radius, "radius", 0, "field radius, degrees")
	fl.StringSliceVar(&columns, "columns", nil, "columns to print")
	fl.IntVar(&chunkSize, "chunk-size", 0, "rows per chunk, 0 for a single chunk")
	return cmd
}

// printChunks writes a header of sorted column names and then the rows of
// every chunk, space separated.
func printChunks(w io.Writer, it *catsim.ChunkIterator) error {
	bw := bufio.NewWriter(w)
	var names []string
	for {
		t, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if names == nil {
			for n := range t {
				names = append(names, n)
			}
			sort.Strings(names)
			fmt.Fprintf(bw, "# %s\n", strings.Join(names, " "))
		}
		for i := 0; i < t.Len(); i++ {
			for k, n := range names {
				if k > 0 {
					bw.WriteByte(' ')
				}
				bw.WriteString(cell(t[n], i))
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

func cell(c gcr.Column, i int) string {
	switch c := c.(type) {
	case gcr.Float64s:
		return strconv.FormatFloat(c[i], 'g', 10, 64)
	case gcr.Int64s:
		return strconv.FormatInt(c[i], 10)
	case gcr.Strings:
		return c[i]
	}
	return "?"
}
