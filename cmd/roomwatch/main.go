// Roomwatch Core - Classroom Monitoring Service
//
// This is the main entry point for the Roomwatch Core service. It monitors
// and controls the devices of one classroom at a time: polling agents for
// user and feature state, relaying commands, and serving state to operator
// consoles over REST and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/roomwatch/roomwatch-core/migrations"

	"github.com/roomwatch/roomwatch-core/internal/agent"
	"github.com/roomwatch/roomwatch-core/internal/api"
	"github.com/roomwatch/roomwatch-core/internal/directory"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/config"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/database"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/logging"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/metrics"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/mqtt"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
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
	// Credentials live in the environment; .env covers development setups.
	_ = godotenv.Load()

	// Context cancels on interrupt signals (Ctrl+C, SIGTERM); this drives
	// the graceful shutdown chain.
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
	log.Info("starting Roomwatch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the roster database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Roster directory
	directoryRepo := directory.NewSQLiteRepository(db.DB)

	// Agent client
	agentClient := agent.NewClient(agent.Config{
		Port:           cfg.Agent.Port,
		AuthMethod:     cfg.Agent.AuthMethod,
		Username:       cfg.Agent.Username,
		Password:       cfg.Agent.Password,
		KeyName:        cfg.Agent.KeyName,
		KeyFile:        cfg.Agent.KeyFile,
		RequestTimeout: cfg.GetRequestTimeout(),
		PingTimeout:    cfg.GetPingTimeout(),
	})
	agentClient.SetLogger(log.Component("agent"))

	// Room controller
	controller := monitor.NewController(agentClient, monitor.Config{
		Poll: monitor.PollConfig{
			Interval: cfg.GetPollInterval(),
			Jitter:   cfg.GetPollJitter(),
		},
		Screenshot: monitor.ScreenshotConfig{
			Format:      cfg.Screenshot.Format,
			Quality:     cfg.Screenshot.Quality,
			Compression: cfg.Screenshot.Compression,
			MaxWidth:    cfg.Screenshot.MaxWidth,
			MaxHeight:   cfg.Screenshot.MaxHeight,
		},
	}, log.Component("monitor"))
	defer func() {
		log.Info("stopping room controller")
		controller.Close()
	}()
	log.Info("room controller initialised",
		"poll_interval", cfg.GetPollInterval(),
	)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			"client_id", cfg.MQTT.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var metricsClient *metrics.Client
	if cfg.Metrics.Enabled {
		metricsClient, err = metrics.Connect(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metricsClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.Metrics.URL,
			"org", cfg.Metrics.Org,
			"bucket", cfg.Metrics.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Poll:       cfg.Poll,
		Logger:     log.Component("api"),
		Controller: controller,
		Directory:  directoryRepo,
		DB:         db,
		MQTT:       mqttClient,
		Metrics:    metricsClient,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, metricsClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops watcher and WebSocket hub)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Room controller (drains pollers, removes agent sessions)
	// 5. Database

	log.Info("Roomwatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ROOMWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ROOMWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB are optional and skipped when nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, metricsClient *metrics.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if metricsClient != nil {
		if err := metricsClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}
