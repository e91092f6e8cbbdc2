// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/iface"
	"github.com/luxfi/objrpc/internal/config"
	"github.com/luxfi/objrpc/internal/demo"
	"github.com/luxfi/objrpc/internal/journal"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/registry"
	"github.com/luxfi/objrpc/toolkit"
)

// ServeOptions holds flags for the serve command. Flags that are set
// override the config file.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Listen     string
	Transport  string
	Gateway    string
	Journal    string
	LogLevel   string
	NoDemo     bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an objrpc server",
		Long: `Run an objrpc server with the demo types and toolkits.

Example:
  objrpc serve --listen :9000 --gateway :8080 --journal objrpc.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, cmd.ErrOrStderr(), nil)
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&opts.Listen, "listen", defaults.Listen, "listen address")
	cmd.Flags().StringVar(&opts.Transport, "transport", defaults.Transport, "transport (zap|grpc)")
	cmd.Flags().StringVar(&opts.Gateway, "gateway", "", "JSON-RPC gateway address")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", defaults.Log.Level, "log level")
	cmd.Flags().BoolVar(&opts.NoDemo, "no-demo", false, "do not register the demo types")

	return cmd
}

func (o *ServeOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = o.Listen
	}
	if flags.Changed("transport") {
		cfg.Transport = o.Transport
	}
	if flags.Changed("gateway") {
		cfg.Gateway = o.Gateway
	}
	if flags.Changed("journal") {
		cfg.Journal = o.Journal
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if o.Format == "json" {
		cfg.Log.Format = "json"
	}
	if o.NoDemo {
		cfg.Demo = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// Endpoints are the addresses a running server listens on.
type Endpoints struct {
	Addr    string
	Gateway string
}

// Serve runs a server for cfg until ctx is done. Logs go to logw. ready,
// if set, is called once every listener is up.
func Serve(ctx context.Context, cfg config.Config, logw io.Writer, ready func(Endpoints)) error {
	log, err := cfg.Log.Logger(logw)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	reg := registry.New()
	tk := toolkit.NewRegistry()
	if cfg.Demo {
		if err := demo.Register(reg, tk, nil); err != nil {
			return err
		}
	}
	if err := checkInterfaces(reg, cfg.Interfaces); err != nil {
		return WrapExitError(ExitCommandError, "interface check failed", err)
	}

	opts := []objrpc.ServerOption{
		objrpc.WithServerTransport(cfg.Transport),
		objrpc.WithServerLogger(log),
		objrpc.WithToolkits(tk),
	}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		opts = append(opts, objrpc.WithJournal(j))
	}
	srv := objrpc.NewServer(reg, opts...)
	defer srv.Close()

	l, err := objrpc.Listen(cfg.Listen, opts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	ep := Endpoints{Addr: l.Addr()}

	if cfg.Gateway != "" {
		gw, addr, err := startGateway(tk, log, cfg.Gateway)
		if err != nil {
			l.Close()
			return WrapExitError(ExitCommandError, "failed to start gateway", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = gw.Shutdown(sctx)
		}()
		ep.Gateway = addr
		log.Info("gateway listening", "addr", addr)
	}

	if ready != nil {
		ready(ep)
	}
	return srv.Serve(ctx, l)
}

func startGateway(tk *toolkit.Registry, log *slog.Logger, addr string) (*http.Server, string, error) {
	h, err := objrpc.NewGateway(tk, log)
	if err != nil {
		return nil, "", err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	gw := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := gw.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("gateway stopped", "error", err)
		}
	}()
	return gw, ln.Addr().String(), nil
}

// checkInterfaces verifies that every interface declared in the CUE files
// is registered with the same method table.
func checkInterfaces(reg *registry.Registry, paths []string) error {
	for _, p := range paths {
		descs, err := iface.LoadCUEFile(p)
		if err != nil {
			return err
		}
		for _, d := range descs {
			served, err := reg.Lookup(d.Name())
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			if served.Fingerprint() != d.Fingerprint() {
				return objerr.New(objerr.ConfigurationError,
					"%s: interface %q differs from the served descriptor", p, d.Name())
			}
		}
	}
	return nil
}
