package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"flowfield/internal/config"
	"flowfield/internal/observability"
	"flowfield/internal/sim"
	"flowfield/internal/terrain"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// session carries the loaded configuration to subcommands.
type session struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	s := &session{v: viper.New()}
	config.SetDefaults(s.v)

	root := &cobra.Command{
		Use:           "flowfield",
		Short:         "Goal-potential field and flow simulator",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := s.bindFlags(cmd); err != nil {
				return err
			}
			if err := s.load(); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "flowfield"})
				return err
			}
			observability.InitializeLogger(s.cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded",
				zap.String("version", Version),
				zap.String("config_file", s.v.ConfigFileUsed()))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&s.cfgFile, "config", "c", "", "config file (default is ./flowfield.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newRunCmd(s),
		newMazeCmd(s),
		newSweepCmd(s),
		newViewCmd(s),
	)
	return root
}

// load reads the config file, if any, and applies environment overrides.
func (s *session) load() error {
	if s.cfgFile != "" {
		s.v.SetConfigFile(s.cfgFile)
	} else {
		s.v.AddConfigPath(".")
		s.v.SetConfigName("flowfield")
		s.v.SetConfigType("yaml")
	}
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	cfg, err := config.NewConfigFromViper(s.v)
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// bindFlag records that flag overrides the viper key. Bindings are applied
// only for the command being executed, since subcommands share keys.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	cmd.Annotations[key] = flag
}

func (s *session) bindFlags(cmd *cobra.Command) error {
	for key, flag := range cmd.Annotations {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("no flag --%s for %s", flag, key)
		}
		if err := s.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// openDriver builds a driver from the loaded configuration, applies the
// configured terrain file and returns it Idle.
func (s *session) openDriver(ctx context.Context, simCfg sim.Config) (*sim.Driver, error) {
	logger := observability.GetLogger()
	opts := s.cfg.ComputeOptions()
	opts.N = simCfg.Size
	d, err := sim.Open(ctx, opts, simCfg, logger)
	if err != nil {
		return nil, err
	}
	if path := s.cfg.Terrain.File; path != "" {
		if err := d.LoadTerrain(ctx, loadTerrainFile(path, simCfg.Size, logger)); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return d, nil
}

// loadTerrainFile reads a CSV terrain, falling back to the built-in maze when
// the file cannot be opened or parsed.
func loadTerrainFile(path string, n int, logger *zap.Logger) *terrain.Grid {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Terrain file unavailable; using fallback maze",
			zap.String("path", path),
			zap.Int("size", n),
			zap.Error(err))
		return terrain.Fallback(n)
	}
	defer f.Close()
	g, _ := terrain.LoadOrFallback(f, n, logger)
	return g
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
