// Droid Agent - device automation agent
//
// The agent keeps a persistent session to an automation server, executes
// UI actions it is asked to perform and streams results and UI-change
// events back. The bundled simulator backend runs the full stack without
// a physical device.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/droid-agent/migrations"

	"github.com/nerrad567/droid-agent/internal/agent"
	"github.com/nerrad567/droid-agent/internal/executor"
	"github.com/nerrad567/droid-agent/internal/history"
	"github.com/nerrad567/droid-agent/internal/infrastructure/config"
	"github.com/nerrad567/droid-agent/internal/infrastructure/database"
	"github.com/nerrad567/droid-agent/internal/infrastructure/influxdb"
	"github.com/nerrad567/droid-agent/internal/infrastructure/logging"
	"github.com/nerrad567/droid-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/droid-agent/internal/simulator"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting droid agent",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	log.Info("backend ready", "backend", cfg.Agent.Backend)

	deps := agent.Dependencies{Logger: log}

	// Action history store (optional)
	if cfg.History.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening history database: %w", dbErr)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		deps.History = history.NewRepository(db)
		log.Info("history store ready", "path", cfg.History.Path)
	} else {
		log.Info("history store disabled")
	}

	// Event feed (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT, cfg.Agent.DeviceID)
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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		deps.Events = mqttClient
		log.Info("event feed ready",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("event feed disabled")
	}

	// Metrics sink (optional)
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
		deps.Metrics = influxClient
		log.Info("metrics sink ready", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("metrics sink disabled")
	}

	a := agent.New(cfg, backend, deps)

	go a.RunHealthReporter(ctx, agent.DefaultHealthInterval)
	go a.RunMaintenance(ctx)

	log.Info("initialisation complete, connecting to server",
		"server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"device_id", cfg.Agent.DeviceID,
	)

	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("droid agent stopped")
	return nil
}

// newBackend selects the UI-automation backend.
func newBackend(cfg *config.Config) (executor.Backend, error) {
	switch cfg.Agent.Backend {
	case "simulator":
		return simulator.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Agent.Backend)
	}
}

// getConfigPath returns the configuration file path.
// Uses DROIDAGENT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DROIDAGENT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
