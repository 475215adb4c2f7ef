// Command volume-counter turns volume button presses into counter changes
// and publishes them to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/volume-counter/internal/app"
	"github.com/sweeney/volume-counter/internal/config"
	"github.com/sweeney/volume-counter/internal/counter"
	"github.com/sweeney/volume-counter/internal/feedback"
	"github.com/sweeney/volume-counter/internal/logger"
	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/mqtt"
	"github.com/sweeney/volume-counter/internal/status"
	"github.com/sweeney/volume-counter/internal/volume"
	"github.com/sweeney/volume-counter/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		printState bool
	)

	cmd := &cobra.Command{
		Use:   "volume-counter",
		Short: "Count volume button presses and publish changes to MQTT.",
		Long: `Watches the output volume of a media endpoint over MQTT. Every press of
a volume button moves the counter up or down, and pressing both buttons
together resets it. The volume is put back to the middle after each press.

Settings come from the YAML file given by --config. Flags override the file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), &cfg)
			if err := config.Validate(&cfg); err != nil {
				return err
			}

			level, _ := logger.ParseLogLevel(cfg.LogLevel)
			log := logger.New(level)
			defer log.Sync() //nolint:errcheck

			if printState {
				return printCounter(cmd.Context(), cmd.OutOrStdout(), cfg)
			}
			return run(cmd.Context(), cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	f.BoolVar(&printState, "print-state", false, "print the stored counter value and exit")
	f.String("broker", config.DefaultBroker, "MQTT broker address")
	f.String("http", config.DefaultHTTPAddr, "HTTP status address (empty to disable)")
	f.String("redis", "", "Redis URL for the counter (empty keeps it in memory)")
	f.Duration("debounce", logic.DefaultDebounceInterval, "minimum spacing between accepted events")
	f.Duration("simultaneous", logic.DefaultSimultaneousThreshold, "max gap for opposite presses to count as a reset (0 disables)")
	f.Duration("heartbeat", config.DefaultHeartbeat, "heartbeat interval (0 to disable)")
	f.Bool("feedback", false, "pulse a GPIO line on every change")
	f.Int("feedback-line", feedback.DefaultLine, "GPIO line offset for feedback")
	f.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	return cmd
}

// applyFlags copies explicitly set flags over the file configuration.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) {
	if f.Changed("broker") {
		cfg.Broker, _ = f.GetString("broker")
	}
	if f.Changed("http") {
		cfg.HTTPAddr, _ = f.GetString("http")
	}
	if f.Changed("redis") {
		cfg.RedisURL, _ = f.GetString("redis")
	}
	if f.Changed("debounce") {
		d, _ := f.GetDuration("debounce")
		cfg.DebounceIntervalMs = d.Milliseconds()
	}
	if f.Changed("simultaneous") {
		d, _ := f.GetDuration("simultaneous")
		cfg.SimultaneousThresholdMs = d.Milliseconds()
	}
	if f.Changed("heartbeat") {
		cfg.Heartbeat, _ = f.GetDuration("heartbeat")
	}
	if f.Changed("feedback") {
		cfg.Feedback.Enabled, _ = f.GetBool("feedback")
	}
	if f.Changed("feedback-line") {
		cfg.Feedback.Line, _ = f.GetInt("feedback-line")
	}
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warnw("close store", "error", err)
		}
	}()

	pulser, err := openPulser(cfg, log)
	if err != nil {
		return err
	}
	defer pulser.Close()

	clock := clockwork.NewRealClock()
	cnt := counter.New(ctx, store, clock, log.Named("counter"))

	// The hooks capture source and publisher, which are set before the
	// client starts connecting.
	var (
		source    *volume.MQTTSource
		publisher *mqtt.RealPublisher
	)
	client := mqtt.NewClient(cfg.Broker, cfg.ClientID, log.Named("mqtt"), func(c paho.Client) {
		source.Resubscribe(c)
		publisher.OnConnect(c)
	})
	source = volume.NewMQTTSource(client, cfg.VolumeStateTopic, cfg.VolumeCommandTopic, cfg.LevelTimeout, log.Named("volume"))
	publisher = mqtt.NewRealPublisher(client, cfg.PublishBuffer, log.Named("mqtt"))
	defer publisher.Close()
	mqtt.Connect(client, log.Named("mqtt"))

	storeName := "memory"
	if cfg.RedisURL != "" {
		storeName = "redis"
	}
	tracker := status.NewTracker(clock.Now(), status.Config{
		DebounceMs:              cfg.DebounceIntervalMs,
		SimultaneousThresholdMs: cfg.SimultaneousThresholdMs,
		HeartbeatMs:             cfg.Heartbeat.Milliseconds(),
		Broker:                  cfg.Broker,
		VolumeStateTopic:        cfg.VolumeStateTopic,
		HTTPAddr:                cfg.HTTPAddr,
		Store:                   storeName,
		Feedback:                cfg.Feedback.Enabled,
	})
	tracker.SetValue(cnt.Value(), cnt.LastUpdated(), "")

	daemon := app.New(app.Options{
		Debounce:      cfg.Debounce(),
		FlushInterval: cfg.FlushInterval(),
		Heartbeat:     cfg.Heartbeat,
		RetryInterval: cfg.RetryInterval,
	}, app.Deps{
		Source:     source,
		Counter:    cnt,
		Publisher:  publisher,
		Connection: publisher,
		Pulser:     pulser,
		Tracker:    tracker,
		Clock:      clock,
		Log:        log,
	})

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, daemon)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"debounce", cfg.Debounce().DebounceInterval,
		"simultaneous", cfg.Debounce().SimultaneousThreshold,
		"broker", cfg.Broker,
		"store", storeName,
		"value", cnt.Value(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return daemon.Run(ctx, sigCh)
}

// openStore picks Redis when a URL is configured, memory otherwise.
func openStore(cfg config.Config) (counter.Store, func() error, error) {
	if cfg.RedisURL == "" {
		return counter.NewMemoryStore(0), func() error { return nil }, nil
	}
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	return counter.NewRedisStore(rdb, cfg.CounterKey), rdb.Close, nil
}

func openPulser(cfg config.Config, log *zap.SugaredLogger) (feedback.Pulser, error) {
	if !cfg.Feedback.Enabled {
		return feedback.NopPulser{}, nil
	}
	p, err := feedback.NewRealPulser(cfg.Feedback.Chip, cfg.Feedback.Line)
	if err != nil {
		return nil, fmt.Errorf("init feedback: %w", err)
	}
	log.Infow("feedback enabled", "chip", cfg.Feedback.Chip, "line", cfg.Feedback.Line)
	return p, nil
}

func printCounter(ctx context.Context, w io.Writer, cfg config.Config) (err error) {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeStore()) }()

	v, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load counter: %w", err)
	}
	_, err = fmt.Fprintf(w, "counter: %d\n", v)
	return err
}
