// shogunosc - OSC bridge for Vicon Shogun Live
//
// This is the main entry point for the bridge. It receives OSC command
// datagrams over UDP, drives capture operations against a supervised
// Shogun Live session, and mirrors session events back out over OSC
// and, optionally, MQTT and InfluxDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/shogun-tools/osc-bridge/internal/infrastructure/config"
	"github.com/shogun-tools/osc-bridge/internal/infrastructure/database"
	"github.com/shogun-tools/osc-bridge/internal/infrastructure/influxdb"
	"github.com/shogun-tools/osc-bridge/internal/infrastructure/logging"
	"github.com/shogun-tools/osc-bridge/internal/infrastructure/mqtt"
	"github.com/shogun-tools/osc-bridge/internal/journal"
	"github.com/shogun-tools/osc-bridge/internal/notify"
	"github.com/shogun-tools/osc-bridge/internal/osc"
	"github.com/shogun-tools/osc-bridge/internal/procwatch"
	"github.com/shogun-tools/osc-bridge/internal/shogun"
	"github.com/shogun-tools/osc-bridge/internal/vicon"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

var historyCount = flag.Int("history", 0,
	"print the most recent N journalled notifications and exit")

func main() {
	flag.Parse()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting shogunosc",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	if *historyCount > 0 {
		return printHistory(ctx, cfg, *historyCount)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Event bus connecting the supervisor to every sink
	notifier := notify.New()

	// Open the journal database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database",
			"open_connections", db.Stats().OpenConnections)
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	log.Info("database connected", "path", db.Path())

	journalRepo := journal.NewSQLiteRepository(db.DB)
	if err := journalRepo.Init(ctx); err != nil {
		return fmt.Errorf("initialising journal: %w", err)
	}
	recorder := journal.NewRecorder(journalRepo, notifier)
	recorder.SetLogger(log)
	go recorder.Run(ctx)
	log.Info("notification journal started")

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		go mqtt.NewForwarder(mqttClient, notifier).Run(ctx)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		if healthErr := influxClient.HealthCheck(ctx); healthErr != nil {
			return fmt.Errorf("InfluxDB health check: %w", healthErr)
		}
		go influxdb.NewForwarder(influxClient, notifier, cfg.Shogun.Host).Run(ctx)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Session supervisor
	finder := procwatch.NewFinder(cfg.Shogun.ProcessNames)
	finder.SetLogger(log)
	device := vicon.NewDevice(vicon.Config{})
	worker := shogun.NewWorker(shogun.Config{
		Host:                 cfg.Shogun.Host,
		CheckInterval:        cfg.Shogun.GetCheckInterval(),
		MaxReconnectAttempts: cfg.Shogun.MaxReconnectAttempts,
		BaseReconnectDelay:   cfg.Shogun.GetBaseReconnectDelay(),
		MaxReconnectDelay:    cfg.Shogun.GetMaxReconnectDelay(),
	}, device, finder, notifier)
	worker.SetLogger(log)

	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(workerDone)
	}()
	log.Info("session supervisor started", "host", cfg.Shogun.Host)

	// OSC transport
	server := osc.NewServer(cfg.OSC.ListenIP, cfg.OSC.ListenPort)
	server.SetLogger(log)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("starting OSC server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing OSC server", "error", closeErr)
		}
	}()

	client := osc.NewClient(cfg.OSC.TargetIP, cfg.OSC.TargetPort)
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing OSC client", "error", closeErr)
		}
	}()

	dispatcher := osc.NewDispatcher(cfg.OSC.Addresses, worker, notifier)
	dispatcher.SetLogger(log)

	mirror := osc.NewMirror(cfg.OSC.Addresses, client, notifier)
	mirror.SetLogger(log)
	go mirror.Run(ctx)
	log.Info("OSC event mirror started",
		"target", fmt.Sprintf("%s:%d", cfg.OSC.TargetIP, cfg.OSC.TargetPort))

	log.Info("initialisation complete, serving OSC",
		"listen", fmt.Sprintf("%s:%d", cfg.OSC.ListenIP, cfg.OSC.ListenPort))

	// Serve until the context is cancelled
	if err := server.Run(ctx, func(msg *goosc.Message) {
		dispatcher.Handle(ctx, msg)
	}); err != nil {
		return fmt.Errorf("serving OSC: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Let in-flight device operations and the supervisor finish before
	// the deferred teardown runs.
	dispatcher.Wait()
	<-workerDone

	if dropped := notifier.Dropped(); dropped > 0 {
		log.Warn("notifications dropped due to slow subscribers", "count", dropped)
	}

	log.Info("shogunosc stopped")
	return nil
}

// printHistory dumps the most recent journalled notifications, oldest
// first, so operators can see what the bridge observed without a
// SQLite client.
func printHistory(ctx context.Context, cfg *config.Config, limit int) error {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-only access, nothing to flush

	repo := journal.NewSQLiteRepository(db.DB)
	if err := repo.Init(ctx); err != nil {
		return fmt.Errorf("initialising journal: %w", err)
	}
	result, err := repo.List(ctx, journal.Filter{Limit: limit})
	if err != nil {
		return fmt.Errorf("listing journal entries: %w", err)
	}

	for i := len(result.Entries) - 1; i >= 0; i-- {
		entry := result.Entries[i]
		fmt.Printf("%s  %-20s %s\n",
			entry.CreatedAt.Local().Format(time.RFC3339),
			entry.Kind, entry.Value)
	}
	fmt.Printf("showing %d of %d entries\n", len(result.Entries), result.Total)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SHOGUNOSC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHOGUNOSC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
