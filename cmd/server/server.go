package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goodieshq/govban/internal/config"
	"github.com/goodieshq/govban/internal/metrics"
	"github.com/goodieshq/govban/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	host           string
	port           uint16
	streamName     string
	allowedSources []string
	metricsAddress string
	maxStreams     int
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:           "vban-server",
	Short:         "Receive and inspect VBAN streams",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	flags := rootCmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	flags.StringVar(&host, "host", "", "listen address")
	flags.Uint16VarP(&port, "port", "p", 0, "listen port (default 6980)")
	flags.StringVarP(&streamName, "stream", "s", "", "only accept this stream name")
	flags.StringSliceVar(&allowedSources, "allow", nil, "only accept packets from these IPs")
	flags.StringVar(&metricsAddress, "metrics", "", "serve Prometheus metrics on this address")
	flags.IntVar(&maxStreams, "max-streams", 0, "maximum number of tracked streams (default 256)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig applies command line flags over the config file
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("stream") {
		cfg.Server.StreamName = streamName
	}
	if flags.Changed("allow") {
		cfg.Server.AllowedSources = allowedSources
	}
	if flags.Changed("metrics") {
		cfg.Server.MetricsAddress = metricsAddress
	}
	if flags.Changed("max-streams") {
		cfg.Server.MaxStreams = maxStreams
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveMetrics(ctx context.Context, address string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", address).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level, _ := cfg.Logging.ParseLevel()
	log.Logger = log.Logger.Level(level)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var m *metrics.ReceiverMetrics
	var wg sync.WaitGroup
	if cfg.Server.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		m = metrics.NewReceiverMetrics(reg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveMetrics(ctx, cfg.Server.MetricsAddress, reg)
		}()
	}

	srv := server.NewServerUDP(server.ServerOpts{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		StreamName:     cfg.Server.StreamName,
		AllowedSources: cfg.Server.AllowedSources,
		Metrics:        m,
		StatsInterval:  cfg.Server.StatsInterval,
		MaxStreams:     cfg.Server.MaxStreams,
		StreamTimeout:  cfg.Server.StreamTimeout,
	})

	log.Info().Uint16("port", cfg.Server.Port).Msg("Starting VBAN server")
	err = srv.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	log.Info().Msg("VBAN server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}
}
