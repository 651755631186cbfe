// Package main is the qotd entrypoint: it loads a quote file and answers every
// TCP connection and UDP datagram with one random quote.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lensvol/qotd/src/config"
	"github.com/lensvol/qotd/src/log"
	"github.com/lensvol/qotd/src/metrics"
	"github.com/lensvol/qotd/src/quotes"
	"github.com/lensvol/qotd/src/server"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

type cliFlags struct {
	configPath  string
	bind        string
	logLevel    string
	metricsAddr string
	noTCP       bool
	noUDP       bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &cliFlags{}
	cmd := &cobra.Command{
		Use:           "qotd [flags] FILENAME",
		Short:         "Serves random quotes over TCP and UDP (RFC 865).",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, args)
			if err != nil {
				return errors.Wrap(err, "load config failed")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, out, log.Setup(cfg.LogConfig.Level, nil))
		},
	}

	registerFlags(cmd, flags)
	return cmd
}

func registerFlags(cmd *cobra.Command, flags *cliFlags) {
	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "config file (.json, .yaml or .yml)")
	f.StringVarP(&flags.bind, "bind", "b", config.DefaultConfig().ServerConfig.BindAddr, "address to bind both responders to")
	f.StringVar(&flags.logLevel, "log-level", "", "trace, debug, info, warn, error, fatal or panic")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&flags.noTCP, "no-tcp", false, "disable the TCP responder")
	f.BoolVar(&flags.noUDP, "no-udp", false, "disable the UDP responder")
}

// loadConfig layers defaults, the config file, QOTD_* variables and flags, in
// that order of precedence.
func loadConfig(cmd *cobra.Command, flags *cliFlags, args []string) (*config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mgr := config.NewManager()
	if flags.configPath != "" {
		if err := mgr.Load(ctx, flags.configPath); err != nil {
			return nil, err
		}
	}
	if err := mgr.LoadFromEnv(ctx); err != nil {
		return nil, err
	}

	cfg := mgr.Get()
	f := cmd.Flags()
	if f.Changed("bind") {
		cfg.ServerConfig.BindAddr = flags.bind
	}
	if f.Changed("log-level") {
		cfg.LogConfig.Level = flags.logLevel
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsConfig.Enabled = true
		cfg.MetricsConfig.Addr = flags.metricsAddr
	}
	if flags.noTCP {
		cfg.ServerConfig.DisableStream = true
	}
	if flags.noUDP {
		cfg.ServerConfig.DisableDatagram = true
	}
	if len(args) == 1 {
		cfg.QuotesConfig.File = args[0]
	}

	if cfg.QuotesConfig.File == "" {
		return nil, errors.New("no quote file given")
	}
	if err := mgr.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, out io.Writer, logger logrus.FieldLogger) error {
	result, err := quotes.Load(cfg.QuotesConfig.File, cfg.QuotesConfig.IndexSuffix, logger)
	if err != nil {
		return errors.Wrap(err, "load quotes failed")
	}
	// The header is described whenever it decoded, even if the index was then
	// abandoned for the legacy loader.
	if result.Header != nil {
		if err := result.Header.Describe(out); err != nil {
			return errors.Wrap(err, "describe index failed")
		}
	}

	collector := metrics.NewCollector()
	collector.SetQuotesLoaded(result.Store.Len(), result.Source.String())
	if cfg.MetricsConfig.Enabled {
		exporter := metrics.NewPrometheusExporter(collector, cfg.MetricsConfig.Addr)
		if err := exporter.Start(); err != nil {
			return errors.Wrap(err, "start metrics exporter failed")
		}
		defer exporter.Stop()
		logger.WithField("addr", exporter.Addr().String()).Info("metrics exporter listening")
	}

	opts := []server.Option{
		server.WithSelector(quotes.NewRandomSelector(result.Store)),
		server.WithLogger(logger),
		server.WithMetrics(collector),
		server.WithWriteTimeout(cfg.WriteTimeout()),
		server.WithDatagramBufferSize(cfg.ServerConfig.DatagramBufferSize),
	}
	if !cfg.ServerConfig.DisableStream {
		opts = append(opts, server.WithStreamAddr(cfg.ServerConfig.BindAddr))
	}
	if !cfg.ServerConfig.DisableDatagram {
		opts = append(opts, server.WithDatagramAddr(cfg.ServerConfig.BindAddr))
	}
	srv, err := server.New(opts...)
	if err != nil {
		return errors.Wrap(err, "new server failed")
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
		for _, line := range listeningLines(srv.Addrs()) {
			fmt.Fprintln(out, line)
		}
	case err := <-errc:
		return errors.Wrap(err, "run server failed")
	}
	return errors.Wrap(<-errc, "run server failed")
}

// listeningLines reports the bound addresses. Both protocols share one line
// when they bound the same host:port.
func listeningLines(addrs server.Addrs) []string {
	if addrs.Stream != nil && addrs.Datagram != nil && addrs.Stream.String() == addrs.Datagram.String() {
		return []string{fmt.Sprintf("TCP/UDP server listening on %s.", addrs.Stream)}
	}
	var lines []string
	if addrs.Stream != nil {
		lines = append(lines, fmt.Sprintf("TCP server listening on %s.", addrs.Stream))
	}
	if addrs.Datagram != nil {
		lines = append(lines, fmt.Sprintf("UDP server listening on %s.", addrs.Datagram))
	}
	return lines
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
