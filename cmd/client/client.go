package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodieshq/govban/internal/client"
	"github.com/goodieshq/govban/internal/config"
	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	host       string
	port       uint16
	streamName string
	rate       int
	channels   uint16
	samples    uint16
	tone       float64
	duration   time.Duration
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "vban-client",
	Short:         "Stream a test tone as VBAN PCM audio",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	flags := rootCmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	flags.StringVar(&host, "host", "", "receiver address (default 127.0.0.1)")
	flags.Uint16VarP(&port, "port", "p", 0, "receiver port (default 6980)")
	flags.StringVarP(&streamName, "stream", "s", "", "stream name, at most 16 bytes")
	flags.IntVarP(&rate, "rate", "r", 0, "sample rate in Hz (default 48000)")
	flags.Uint16Var(&channels, "channels", 0, "channel count (default 2)")
	flags.Uint16Var(&samples, "samples", 0, "samples per frame (default 256)")
	flags.Float64Var(&tone, "tone", 0, "tone frequency in Hz, 0 sends silence")
	flags.DurationVarP(&duration, "duration", "d", 0, "how long to stream (default 10s)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig applies command line flags over the config file
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	c := &cfg.Client
	c.Host = utils.FirstNonZero(host, c.Host)
	c.Port = utils.FirstNonZero(port, c.Port)
	c.StreamName = utils.FirstNonZero(streamName, c.StreamName)
	c.SampleRate = utils.FirstNonZero(rate, c.SampleRate)
	c.Channels = utils.FirstNonZero(channels, c.Channels)
	c.SamplesPerFrame = utils.FirstNonZero(samples, c.SamplesPerFrame)
	if flags.Changed("tone") {
		c.ToneHz = tone
	}
	if flags.Changed("duration") {
		c.Duration = duration
	}
	cfg.Logging.Level = utils.FirstNonZero(logLevel, cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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

	sampleRate, err := protocol.SampleRateFromHz(cfg.Client.SampleRate)
	if err != nil {
		return err
	}

	cli := client.NewClientUDP(cfg.Client.Host, cfg.Client.Port, utils.Ptr(cfg.Client.Timeout))
	return cli.Run(ctx, client.RunOpts{
		StreamName:      utils.Ptr(cfg.Client.StreamName),
		SampleRate:      utils.Ptr(sampleRate),
		Channels:        utils.Ptr(cfg.Client.Channels),
		SamplesPerFrame: utils.Ptr(cfg.Client.SamplesPerFrame),
		Duration:        utils.Ptr(cfg.Client.Duration),
		ToneHz:          utils.Ptr(cfg.Client.ToneHz),
		StatsInterval:   utils.Ptr(time.Second),
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Client error")
		os.Exit(1)
	}
}
