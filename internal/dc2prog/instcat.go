// Public domain.

package dc2prog

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soniakeys/dc2cat/internal/catsim"
	"github.com/soniakeys/dc2cat/internal/instcat"
	"github.com/soniakeys/dc2cat/internal/refcat"
	"github.com/soniakeys/dc2cat/internal/sky"
)

func (a *app) refcatCmd() *cobra.Command {
	var (
		ra, dec, fov float64
		outDir       string
		chunkSize    int
	)
	cmd := &cobra.Command{
		Use:   "refcat <star catalog>",
		Short: "Write the reference catalog of the stars in a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromSettings(cmd, "fov", &fov, a.settings.FOV)
			reg, err := a.registry()
			if err != nil {
				return err
			}
			o, err := catsim.New(catsim.NewCache(reg), args[0], catsim.Star, nil)
			if err != nil {
				return err
			}
			obs := catsim.NewObservationMetaData(ra, dec, catsim.Circle, fov)
			logPointing(a.log, obs)
			w := refcat.NewWriter(o)
			w.ChunkSize = chunkSize
			w.Log = a.log

			fn := filepath.Join(outDir, refcat.FileName)
			f, err := os.Create(fn)
			if err != nil {
				return err
			}
			n, err := w.Write(f, obs)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			a.log.Info("reference catalog written", zap.String("file", fn), zap.Int("stars", n))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.Float64Var(&ra, "ra", refcat.DefaultRA, "field center RA, degrees")
	fl.Float64Var(&dec, "dec", refcat.DefaultDec, "field center Dec, degrees")
	fl.Float64Var(&fov, "fov", refcat.DefaultFOV, "field radius, degrees")
	fl.StringVarP(&outDir, "out-dir", "o", ".", "output directory")
	fl.IntVar(&chunkSize, "chunk-size", refcat.DefaultChunkSize, "stars per chunk")
	return cmd
}

func (a *app) trimCmd() *cobra.Command {
	var (
		outDir string
		margin float64
	)
	cmd := &cobra.Command{
		Use:   "trim <instance catalog> [sensor...]",
		Short: "Split an instance catalog into per-sensor catalogs",
		Long: `trim writes one instance catalog per sensor holding the objects
that land on the sensor.  Sensors are named "R:2,2 S:1,1" or R22_S11.
Without sensor arguments the sensors of the settings file are trimmed,
or else every science sensor.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args[1:]
			if len(names) == 0 {
				names = a.settings.Sensors
			}
			var sensors []instcat.Sensor
			for _, n := range names {
				s, err := instcat.ParseSensor(n)
				if err != nil {
					return err
				}
				sensors = append(sensors, s)
			}
			if sensors == nil {
				sensors = instcat.Sensors()
			}
			t, err := instcat.NewTrimmer(args[0], sensors)
			if err != nil {
				return err
			}
			t.Margin = sky.Rad2Deg(sky.Arcsec2Rad(margin))
			t.Log = a.log
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			n, err := t.Write(outDir)
			if err != nil {
				return err
			}
			a.log.Info("trim done", zap.Int("sensors", len(sensors)), zap.Int("written", n))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "output directory")
	cmd.Flags().Float64Var(&margin, "margin", 20, "sensor margin, arcsec")
	return cmd
}
