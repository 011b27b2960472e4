// Command dgram sends UDP datagrams to a multicast group or a unicast host,
// and listens for them.
//
//	dgram multicast --group 224.0.1.1 --port 30001     # prompt for each message
//	dgram unicast --address 10.0.0.174 --port 30002    # fixed message every second
//	dgram listen --address 224.0.1.1 --port 30001      # print what arrives
//
// Flags can also come from DGRAM_* environment variables or from a YAML
// file given with --config (see package internal/config). The command line
// wins over the file, and the file over the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/internal/config"
	"github.com/joshuafuller/dgram/internal/logging"
	"github.com/joshuafuller/dgram/internal/protocol"
	"github.com/joshuafuller/dgram/internal/telemetry"
)

var version = "dev"

// CLI is the root command line.
type CLI struct {
	Config      kong.ConfigFlag  `help:"Load flag values from a YAML file." placeholder:"FILE"`
	LogLevel    string           `help:"Log level: debug, info, warn or error." default:"warn" env:"DGRAM_LOG_LEVEL"`
	MetricsAddr string           `help:"Serve prometheus metrics on this address, e.g. :9100." env:"DGRAM_METRICS_ADDR"`
	Version     kong.VersionFlag `help:"Print the version and exit."`

	Multicast multicastCmd `cmd:"" help:"Prompt for messages and send each one to a multicast group."`
	Unicast   unicastCmd   `cmd:"" help:"Send a fixed message to one host at a fixed interval."`
	Listen    listenCmd    `cmd:"" help:"Print datagrams received on a unicast address or multicast group."`
}

// env is what every command's Run receives.
type env struct {
	ctx      context.Context
	logger   *zap.Logger
	registry *prometheus.Registry
	in       io.Reader
	out      io.Writer
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("dgram"),
		kong.Description("Send and receive UDP datagrams over unicast or multicast."),
		kong.UsageOnError(),
		kong.Configuration(config.YAML),
		kong.Vars{
			"version":        version,
			"group":          protocol.DefaultMulticastGroup,
			"multicast_port": strconv.Itoa(protocol.DefaultMulticastPort),
			"unicast_port":   strconv.Itoa(protocol.DefaultUnicastPort),
			"ttl":            strconv.Itoa(protocol.DefaultTTL),
			"message":        protocol.DefaultMessage,
			"interval":       protocol.DefaultInterval.String(),
		},
	)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, &cli, kctx, os.Stdin, os.Stdout)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "dgram: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cli *CLI, kctx *kong.Context, in io.Reader, out io.Writer) error {
	logger, err := logging.New(cli.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	telemetry.NewMetrics(reg).SetBuildInfo(version)

	if cli.MetricsAddr != "" {
		shutdown, err := serveMetrics(cli.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	return kctx.Run(&env{
		ctx:      ctx,
		logger:   logger,
		registry: reg,
		in:       in,
		out:      out,
	})
}

// serveMetrics starts a /metrics endpoint and returns a function that stops
// it.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.Stringer("addr", ln.Addr()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
