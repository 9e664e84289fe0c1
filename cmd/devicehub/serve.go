package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/devicehub/internal/api"
	"github.com/nerrad567/devicehub/internal/audit"
	"github.com/nerrad567/devicehub/internal/auth"
	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	"github.com/nerrad567/devicehub/internal/infrastructure/influxdb"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicehub/internal/telemetry"
)

// runServe wires the application together and blocks until ctx is
// cancelled. Cleanup runs in reverse order of startup.
func runServe(ctx context.Context, opts *rootOptions) error {
	// Default logger until config is loaded
	log := logging.Default()
	log.Info("starting devicehub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	m := metrics.New()
	m.RegisterDB(db.DB)
	checks := map[string]api.HealthChecker{"database": db}

	// Domain services
	accounts := auth.NewService(auth.NewAccountRepository(db.DB))
	accounts.SetLogger(log)
	issuer := auth.NewIssuer(accounts, cfg.Security.JWT.Secret, cfg.AccessTokenTTL())

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), accounts)
	registry.SetLogger(log)

	store := telemetry.NewStore(telemetry.NewSQLiteRepository(db.DB))
	store.SetLogger(log)
	store.SetMetrics(m)

	// MQTT mirror and ingest (optional). Ingest starts once every sink is
	// registered.
	var ingestor *telemetry.Ingestor
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(ctx, cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		checks["mqtt"] = mqttClient
		store.AddSink(telemetry.NewMQTTSink(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
		m.RegisterGauge("mqtt", "connected", "Whether the MQTT client is connected (1) or not (0).", func() float64 {
			if mqttClient.IsConnected() {
				return 1
			}
			return 0
		})

		if cfg.MQTT.Ingest {
			ingestor = telemetry.NewIngestor(mqttClient, mqttClient.Topics(), mqttClient.QoS(), registry, store)
			ingestor.SetLogger(log.With("component", "ingest"))
		}
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB mirror (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		m.RegisterGauge("influxdb", "points_queued", "Telemetry points handed to the InfluxDB mirror.", func() float64 {
			return float64(influxClient.Stats().Queued)
		})
		m.RegisterGauge("influxdb", "write_failures", "Batches the InfluxDB mirror failed to write.", func() float64 {
			return float64(influxClient.Stats().Failed)
		})

		checks["influxdb"] = influxClient
		store.AddSink(telemetry.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Accounts: accounts,
		Issuer:   issuer,
		Registry: registry,
		Store:    store,
		Audit:    audit.NewSQLiteRepository(db.DB),
		Metrics:  m,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	store.AddSink(api.NewHubSink(srv.Hub()))
	m.RegisterGauge("websocket", "clients", "Number of connected telemetry stream clients.", func() float64 {
		return float64(srv.Hub().ClientCount())
	})

	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if ingestor != nil {
		if startErr := ingestor.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT ingest: %w", startErr)
		}
		defer func() {
			if stopErr := ingestor.Stop(); stopErr != nil {
				log.Error("error stopping MQTT ingest", "error", stopErr)
			}
		}()
	}

	log.Info("devicehub ready", "address", srv.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}
