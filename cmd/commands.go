package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/internal/util"
	"github.com/brettbedarf/assemblyfs/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	recursive bool
	umount    bool
	addr      string
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory of the assembly",
	Long: `List the entries of a virtual directory. Directories are shown with a trailing "/".

Examples:
  assemblyfs -m assembly.yaml ls
  assemblyfs -m assembly.yaml ls -R lib/app.jar`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var catCmd = &cobra.Command{
	Use:   "cat <path>...",
	Short: "Print files of the assembly",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCat,
}

var mountCmd = &cobra.Command{
	Use:   "mount <dir>",
	Short: "Mount the assembly read-only with FUSE until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runMount,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assembly over read-only WebDAV with metrics at /metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temp dirs left behind by crashed processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cleanStale()
		return nil
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "List subdirectories recursively")
	mountCmd.Flags().BoolVarP(&umount, "umount", "u", false,
		"Unmount the dir first if needed before mounting again. Useful for debuggers that don't exit properly.")
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	rootCmd.AddCommand(lsCmd, catCmd, mountCmd, serveCmd, cleanCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck

	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	f := s.root.Child(path)
	if !f.Exists() {
		return fmt.Errorf("%s: %w", path, assemblyfs.ErrNotFound)
	}
	out := cmd.OutOrStdout()
	if !f.IsDirectory() {
		fmt.Fprintln(out, f.Name())
		return nil
	}
	if !recursive {
		for _, c := range f.Children() {
			fmt.Fprintln(out, display(c, c.Name()))
		}
		return nil
	}
	return f.Visit(func(c *assemblyfs.VirtualFile) error {
		rel, err := assemblyfs.RelativePath(f, c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, display(c, strings.Join(rel, "/")))
		return err
	})
}

func display(f *assemblyfs.VirtualFile, name string) string {
	if f.IsDirectory() {
		return name + "/"
	}
	return name
}

func runCat(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck

	for _, path := range args {
		if err := cat(cmd.OutOrStdout(), s.root.Child(path)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func cat(w io.Writer, f *assemblyfs.VirtualFile) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

func runMount(cmd *cobra.Command, args []string) error {
	logger := util.GetLogger("mount")
	mnt := args[0]
	if umount {
		// we ignore error here if not already mounted
		exec.Command("fusermount", "-u", mnt).Run() // nolint:errcheck
	}
	cleanStale()

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	s.runReaper(ctx)

	fs := server.NewFUSE(s.root, cfg)
	if err := fs.Serve(mnt); err != nil {
		return fmt.Errorf("mount %s: %w", mnt, err)
	}
	done := make(chan struct{})
	go func() {
		fs.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, unmounting filesystem")
		if err := fs.Unmount(); err != nil {
			return fmt.Errorf("unmount %s: %w", mnt, err)
		}
		<-done
	case <-done:
		logger.Info().Msg("Filesystem unmounted externally")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := util.GetLogger("serve")
	cleanStale()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s, err := openSession(reg)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	s.runReaper(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", server.NewWebDAV(s.root, ""))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving WebDAV")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}
