// Public domain.

package dc2prog

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soniakeys/dc2cat/internal/config"
	"github.com/soniakeys/dc2cat/internal/opsim"
	"github.com/soniakeys/dc2cat/internal/sed"
	"github.com/soniakeys/dc2cat/internal/sky"
	"github.com/soniakeys/dc2cat/internal/validate"
)

// default truth catalogs of the validations
const (
	positionTruth = "cosmoDC2_v1.1.4_image_addon_knots"
	fluxTruth     = "cosmoDC2_v1.1.4_image"
)

func parseObsHistID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("obsHistID %q: %w", s, err)
	}
	return id, nil
}

// sprinkled reads the sprinkler caches of $TWINKLES_DIR.  With the
// variable unset no galaxy is sprinkled.
func (a *app) sprinkled() (map[int64]bool, error) {
	dir, err := a.env.Twinkles()
	if errors.Is(err, config.ErrUnset) {
		a.log.Warn("no sprinkled galaxies", zap.Error(err))
		return map[int64]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	return validate.ReadSprinkled(validate.SprinkledFiles(dir)...)
}

func (a *app) verifyPosCmd() *cobra.Command {
	var (
		catDir  string
		truth   string
		opsimDB string
		ra, dec float64
		fov     float64
	)
	cmd := &cobra.Command{
		Use:   "verify-pos <obsHistID>",
		Short: "Check the galaxies and positions of a visit's instance catalogs",
		Long: `verify-pos compares the bulge and disk catalogs of a visit with the
truth catalog.  The boresight is read from --opsim, or else given
with --ra and --dec.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromSettings(cmd, "catalog", &truth, a.settings.Catalog)
			fromSettings(cmd, "opsim", &opsimDB, a.settings.OpSim)
			fromSettings(cmd, "fov", &fov, a.settings.FOV)
			id, err := parseObsHistID(args[0])
			if err != nil {
				return err
			}
			if opsimDB != "" {
				db, err := opsim.Open(opsimDB)
				if err != nil {
					return err
				}
				p, err := db.Pointing(cmd.Context(), id)
				db.Close()
				if err != nil {
					return err
				}
				logPointing(a.log, p.ObservationMetaData(fov))
				ra, dec = sky.Rad2Deg(p.RA), sky.Rad2Deg(p.Dec)
			} else if !cmd.Flags().Changed("ra") || !cmd.Flags().Changed("dec") {
				return errors.New("need --opsim or --ra and --dec")
			}
			spr, err := a.sprinkled()
			if err != nil {
				return err
			}
			cat, err := a.loadCatalog(truth)
			if err != nil {
				return err
			}
			v := &validate.Positions{
				Truth:     cat,
				Dir:       validate.VisitDir(catDir, id),
				ObsHistID: id,
				RA:        ra,
				Dec:       dec,
				FOV:       fov,
				Sprinkled: spr,
				Log:       a.log,
			}
			reps, err := v.Run()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range reps {
				fmt.Fprintf(out, "%-5s truth %d catalog %d trimmed %d max delta %.3g\n",
					r.Component, r.Truth, r.Catalog, r.Trimmed, r.MaxDelta)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&catDir, "cat-dir", ".", "directory of visit directories")
	fl.StringVar(&truth, "catalog", positionTruth, "truth catalog")
	fl.StringVar(&opsimDB, "opsim", "", "OpSim database")
	fl.Float64Var(&ra, "ra", 0, "boresight RA, degrees")
	fl.Float64Var(&dec, "dec", 0, "boresight Dec, degrees")
	fl.Float64Var(&fov, "fov", validate.DefaultFOV, "field radius, degrees")
	return cmd
}

func (a *app) verifyFluxCmd() *cobra.Command {
	var (
		catDir    string
		truth     string
		rows      int
		tolerance float64
		hist      string
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "verify-flux <obsHistID>",
		Short: "Compare instance catalog fluxes of sampled galaxies with truth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromSettings(cmd, "catalog", &truth, a.settings.Catalog)
			fromSettings(cmd, "tolerance", &tolerance, a.settings.Tolerance)
			id, err := parseObsHistID(args[0])
			if err != nil {
				return err
			}
			sedDir, err := a.env.SEDDir()
			if err != nil {
				return err
			}
			bpDir, err := a.env.BandpassDir()
			if err != nil {
				return err
			}
			_, hardware, err := sed.LoadLSSTBandpasses(bpDir)
			if err != nil {
				return err
			}
			cat, err := a.loadCatalog(truth)
			if err != nil {
				return err
			}
			v := &validate.Fluxes{
				Truth:      cat,
				Dir:        validate.VisitDir(catDir, id),
				ObsHistID:  id,
				Bandpasses: hardware,
				SEDs:       sed.NewCache(sedDir),
				Rows:       rows,
				Tolerance:  tolerance,
				Workers:    workers,
				Log:        a.log,
			}
			r, err := v.Run(cmd.Context())
			if r != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s band, %d galaxies, max |dmag| %.4g\n",
					r.Band, r.Rows, r.MaxDMag)
				if hist != "" {
					if herr := r.Histogram(hist); herr != nil {
						a.log.Error("histogram", zap.Error(herr))
					}
				}
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&catDir, "cat-dir", ".", "directory of visit directories")
	fl.StringVar(&truth, "catalog", fluxTruth, "truth catalog")
	fl.IntVar(&rows, "rows", validate.DefaultRows, "galaxies sampled, 0 for all")
	fl.Float64Var(&tolerance, "tolerance", validate.DefaultTolerance, "largest |dmag| accepted")
	fl.StringVar(&hist, "hist", "", "write a |dmag| histogram PNG")
	fl.IntVar(&workers, "workers", defaultWorkers(), "concurrent galaxies")
	return cmd
}
