package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/archive"
	"github.com/brettbedarf/assemblyfs/assembly"
	"github.com/brettbedarf/assemblyfs/config"
	"github.com/brettbedarf/assemblyfs/filesystem"
	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	manifestPath string
	configPath   string
	verbose      int
	logFile      string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "assemblyfs",
	Short: "Browse and export virtual assemblies of directories and archives",
	Long: `assemblyfs builds a virtual tree from a manifest of real directories, files and
archives (zip, jar, 7z, rar, cpio) and lets you list, read, mount or serve it.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&manifestPath, "manifest", "m", "", "Path to the assembly manifest (YAML or JSON)")
	flags.StringVarP(&configPath, "config", "c", "", "Path to a config file (YAML or JSON)")
	flags.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "Log verbosity between 1 (error) and 5 (trace)")
	flags.StringVar(&logFile, "log-file", "", "Also write logs to this rotated file")
}

// setup loads the config, applies flag overrides and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.NewDefaultConfig()
	}
	override := &config.ConfigOverride{}
	if cmd.Flags().Changed("verbose") || configPath == "" {
		override.LogLvl = &verbose
	}
	if logFile != "" {
		override.LogFile = &logFile
	}
	cfg.Merge(override)
	util.InitializeLogger(cfg.LogLvl, util.LogFileOptions{Path: cfg.LogFile})
	return nil
}

// session is an assembly loaded from the manifest and exported at the root of a VFS.
type session struct {
	asm    *assembly.Assembly
	root   *assemblyfs.VirtualFile
	mount  io.Closer
	reaper *archive.Reaper
}

// openSession builds the assembly. Metrics are registered with reg when non-nil.
func openSession(reg prometheus.Registerer) (*session, error) {
	logger := util.GetLogger("openSession")
	if manifestPath == "" {
		return nil, errors.New("no manifest given, use --manifest")
	}
	opts := assembly.OptionsFromConfig(cfg)
	if reg != nil {
		opts.Metrics = archive.NewMetrics(reg)
	}
	s := &session{}
	if cfg.ReaperInterval > 0 {
		s.reaper = archive.NewReaper(cfg.IdleTimeout, cfg.ReaperInterval)
		opts.Reaper = s.reaper
	}

	a, err := assembly.FromManifest(manifestPath, opts)
	if err != nil {
		return nil, err
	}
	v := assemblyfs.New()
	h, err := a.MountInto(v, v.Root())
	if err != nil {
		a.Close() // nolint:errcheck
		return nil, err
	}
	s.asm, s.root, s.mount = a, v.Root(), h
	logger.Debug().Str("manifest", manifestPath).Str("assembly", a.ID()).Msg("Assembly loaded")
	return s, nil
}

// runReaper releases idle archives until ctx is done.
func (s *session) runReaper(ctx context.Context) {
	if s.reaper != nil {
		go s.reaper.Run(ctx)
	}
}

func (s *session) Close() error {
	return errors.Join(s.mount.Close(), s.asm.Close())
}

// cleanStale removes temp dirs left behind by crashed processes.
func cleanStale() {
	logger := util.GetLogger("cleanStale")
	n, err := filesystem.CleanStale(cfg.TempDir, cfg.TempPrefix)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to clean stale temp dirs")
		return
	}
	if n > 0 {
		logger.Info().Int("removed", n).Msg("Removed stale temp dirs")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
