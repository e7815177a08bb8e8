// Command racedraw draws a ranking from a list of names by running a series
// of elimination races.
//
//	racedraw [flags] name1 name2 ...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/racedraw/racedraw/internal/api"
	"github.com/racedraw/racedraw/internal/config"
	"github.com/racedraw/racedraw/internal/dispatcher"
	"github.com/racedraw/racedraw/internal/httpapi"
	"github.com/racedraw/racedraw/internal/influx"
	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/loop"
	"github.com/racedraw/racedraw/internal/monitor"
	intOtel "github.com/racedraw/racedraw/internal/otel"
	"github.com/racedraw/racedraw/internal/render"
	"github.com/racedraw/racedraw/internal/session"
	"github.com/racedraw/racedraw/internal/tournament"
	"github.com/racedraw/racedraw/internal/worker"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	AppName = "racedraw"
)

var (
	SessionStartTime = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider
)

// flagBindings maps command-line flags to config keys.
var flagBindings = map[string]string{
	"mode":      "tournament.mode",
	"pause":     "tournament.pause",
	"headless":  "headless",
	"seed":      "race.seed",
	"storage":   "storage.type",
	"http":      "http.address",
	"log-level": "logLevel",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "racedraw:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	configDir := flags.String("config", ".", "directory containing "+config.FileName)
	flags.String("mode", "winner", `ranking mode: "winner" or "loser"`)
	flags.Duration("pause", 1500*time.Millisecond, "break between races")
	flags.Bool("headless", false, "print results instead of drawing the track")
	flags.Uint64("seed", 0, "random seed, 0 picks one")
	flags.String("storage", "memory", "recording backend: memory, sqlite, postgres or none")
	flags.String("http", "", "serve the status API on this address")
	flags.String("log-level", "info", "DEBUG, INFO, WARN or ERROR")
	fast := flags.Bool("fast", false, "resolve races instantly instead of in real time")
	version := flags.Bool("version", false, "print the version and exit")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] name1 name2 ...\n", AppName)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Printf("%s %s (%s)\n", AppName, Version, BuildDate)
		return nil
	}

	if err := config.LoadOptional(*configDir); err != nil {
		return err
	}
	if err := config.BindFlags(flags, flagBindings); err != nil {
		return err
	}
	if flags.Changed("http") {
		viper.Set("http.enabled", true)
	}

	names := flags.Args()
	if len(names) == 0 {
		flags.Usage()
		return errors.New("no participants given")
	}
	mode, err := tournament.ParseMode(config.GetString("tournament.mode"))
	if err != nil {
		return err
	}
	headless := config.GetBool("headless")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFile, closeLogs := logging.OpenLogFileOrDiscard(config.GetString("logsDir"), AppName, SessionStartTime)
	defer closeLogs()
	runCtx := &logging.RunContext{}
	gelfWriter := setupLogging(logFile, runCtx)
	if gelfWriter != nil {
		defer gelfWriter.Close()
	}
	if OTelProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = OTelProvider.Shutdown(shutdownCtx)
		}()
	}
	Logger.Info("Starting up", "version", Version, "build", BuildDate, "participants", len(names), "mode", mode)

	zl := zerolog.New(logFile).With().Timestamp().Str("app", AppName).Logger()

	metrics, err := intOtel.NewRaceMetrics(OTelProvider.Meter(AppName))
	if err != nil {
		Logger.Warn("Failed to register race metrics", "error", err)
	}

	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		influxManager = influx.NewManager(zl, filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("influx_backup_%s.log.gz", SessionStartTime.Format("20060102_150405"))))
		if err := influxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable", "error", err)
			influxManager = nil
		} else {
			defer influxManager.Close()
		}
	}

	var uploader worker.Uploader
	if config.GetBool("api.enabled") {
		client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
		hcCtx, hcCancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Healthcheck(hcCtx)
		hcCancel()
		if err != nil {
			Logger.Warn("Upload server unreachable, uploads may fail", "error", err)
		}
		uploader = client
	}

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, SlogManager, zl)
	if err != nil {
		return err
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("failed to initialize storage backend: %w", err)
		}
		defer func() {
			if err := backend.Close(); err != nil {
				Logger.Error("Failed to close storage backend", "error", err)
			}
		}()
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer eventDispatcher.Close()
	workerManager := worker.NewManager(worker.Dependencies{
		LogManager: SlogManager,
		Influx:     influxManager,
		Metrics:    metrics,
		Uploader:   uploader,
	}, backend)
	workerManager.RegisterHandlers(eventDispatcher)

	raceCfg := config.GetRaceConfig()
	renderer, ctx, err := createRenderer(ctx, headless, raceCfg.TrackLength)
	if err != nil {
		return err
	}
	defer renderer.Close()

	opts := session.Options{
		Names:       names,
		Mode:        mode,
		Race:        raceCfg,
		Seed:        viper.GetUint64("race.seed"),
		Pause:       config.GetDuration("tournament.pause"),
		FrameSample: storageCfg.FrameSample,
		Interval:    config.GetDuration("race.frameInterval"),
	}
	if *fast {
		// each frame advances the race by one interval, however long it took
		opts.Clock = loop.NewStepClock(time.Now(), opts.Interval)
		opts.Interval = time.Millisecond
		opts.Pause = 0
	}
	sess, err := session.New(opts, session.Deps{
		Renderer:   renderer,
		Dispatcher: eventDispatcher,
		Logger:     Logger,
		Run:        runCtx,
	})
	if err != nil {
		return err
	}

	if config.GetBool("monitor.enabled") {
		mon := monitor.NewService(monitor.Dependencies{
			LogManager: SlogManager,
			Session:    sess,
			Influx:     influxManager,
			StatusPath: config.GetString("monitor.statusFile"),
			Interval:   config.GetDuration("monitor.interval"),
		})
		if err := mon.Start(); err != nil {
			Logger.Warn("Failed to start status monitor", "error", err)
		}
		defer mon.Stop()
	}

	if httpCfg := config.GetHTTPConfig(); httpCfg.Enabled {
		archive, _ := backend.(httpapi.Archive)
		srv := httpapi.New(sess, archive, Logger)
		go func() {
			if err := srv.ListenAndServe(ctx, httpCfg.Address); err != nil {
				Logger.Error("Status API stopped", "error", err)
			}
		}()
	}

	ranking, err := sess.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			Logger.Info("Tournament interrupted", "placed", len(ranking))
			return nil
		}
		return err
	}
	if last := workerManager.LastUpload(); last != "" {
		Logger.Info("Tournament uploaded", "file", last)
	}

	if !headless {
		// keep the standings on screen until the user quits
		<-ctx.Done()
	}
	_ = SlogManager.Flush(context.Background())
	return nil
}

// setupLogging configures SlogManager with the log file, the optional OTel
// provider and the optional GELF output.
func setupLogging(logFile io.Writer, rc *logging.RunContext) *gelf.Writer {
	level := config.GetString("logLevel")

	var err error
	OTelProvider, err = intOtel.New(intOtel.FromConfig(config.GetOTelConfig(), logFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider.Enabled() {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	opts := []logging.Option{logging.WithContext(rc.Attrs)}
	var gelfWriter *gelf.Writer
	if config.GetBool("graylog.enabled") {
		handler, w, err := logging.NewGELFHandler(config.GetString("graylog.address"), level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set up GELF output: %v\n", err)
		} else {
			opts = append(opts, logging.WithHandler(handler))
			gelfWriter = w
		}
	}

	SlogManager.Setup(logFile, level, otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	return gelfWriter
}

// createRenderer picks the terminal renderer unless headless. The returned
// context is also cancelled when the user quits the terminal view.
func createRenderer(ctx context.Context, headless bool, trackLength float64) (render.Renderer, context.Context, error) {
	if headless {
		return render.NewText(os.Stdout), ctx, nil
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create terminal screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize terminal screen: %w", err)
	}

	t := render.NewTerminal(screen, trackLength)
	quitCtx, cancel := context.WithCancel(ctx)
	go t.WatchQuit(cancel)
	return t, quitCtx, nil
}
