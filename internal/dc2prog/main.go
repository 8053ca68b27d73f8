// Public domain.

// Package dc2prog implements the dc2cat command.
package dc2prog

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/soniakeys/dc2cat/internal/catsim"
	"github.com/soniakeys/dc2cat/internal/config"
	"github.com/soniakeys/dc2cat/internal/gcr"
)

const versionString = "dc2cat version 0.1 Go source."

// Main runs the dc2cat command and terminates the process on error.
func Main() {
	defer exit.Handler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewRoot().ExecuteContext(ctx); err != nil {
		exit.Log(err)
	}
}

// app holds the state shared by the subcommands.
type app struct {
	verbose      bool
	configDir    string
	settingsFile string

	log      *zap.Logger
	env      *config.Env
	settings *config.File
}

// NewRoot returns the root command with all subcommands added.
func NewRoot() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dc2cat",
		Short: "DC2 catalog tools",
		Long: `dc2cat builds and checks the inputs of DC2 image simulations:
the supernova parameter database, SED fits of truth catalogs, reference
catalogs, and per-sensor instance catalogs.`,
		Version:           versionString,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.configDir, "config-dir", "", "catalog config directory (default $DC2_CATALOG_CONFIG_DIR)")
	pf.StringVar(&a.settingsFile, "settings", "", "YAML file of command settings")

	root.AddCommand(
		a.snedbCmd(),
		a.sedgridCmd(),
		a.sedfitCmd(),
		a.chunksCmd(),
		a.refcatCmd(),
		a.trimCmd(),
		a.verifyPosCmd(),
		a.verifyFluxCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := zap.NewProductionConfig()
	if a.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	if a.log, err = cfg.Build(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if a.env, err = config.ReadEnv(); err != nil {
		return err
	}
	a.settings = &config.File{}
	if a.settingsFile != "" {
		if a.settings, err = config.ReadFile(a.settingsFile); err != nil {
			return err
		}
	}
	a.log.Debug("start", zap.String("command", cmd.CommandPath()))
	return nil
}

// registry returns the catalog registry of --config-dir or the
// environment.
func (a *app) registry() (*gcr.Registry, error) {
	dir := a.configDir
	if dir == "" {
		var err error
		if dir, err = a.env.CatalogDir(); err != nil {
			return nil, err
		}
	}
	return gcr.NewRegistry(dir), nil
}

func (a *app) loadCatalog(name string) (*gcr.Reader, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	a.log.Info("loading catalog", zap.String("catalog", name))
	return reg.LoadCatalog(name, nil)
}

// fromSettings sets *v to the settings file value s when flag was not
// given on the command line.
func fromSettings[T comparable](cmd *cobra.Command, flag string, v *T, s T) {
	var zero T
	if s != zero && !cmd.Flags().Changed(flag) {
		*v = s
	}
}

func logPointing(log *zap.Logger, obs *catsim.ObservationMetaData) {
	log.Info("pointing", zap.Stringer("obs", obs))
}

func defaultWorkers() int { return runtime.NumCPU() }
