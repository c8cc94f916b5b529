package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/api"
	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/auth"
	"github.com/nerrad567/gray-logic-automata/internal/automation"
	"github.com/nerrad567/gray-logic-automata/internal/capability"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-automata/internal/source"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the automation service (default)",
		Long: `Starts the dispatcher, the MQTT event source and the HTTP API, and
runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	return run(cmd.Context(), cfg)
}

// run wires every component and blocks until ctx is cancelled. Components
// are released in reverse order of creation.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting automata",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site", cfg.Site.ID,
	)

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing store and database")
		if closeErr := a.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path, "store", cfg.Engine.Store)

	env := capability.New(&http.Client{Timeout: cfg.GetWebhookTimeout()})
	env.OnChange(func(c step.Capability, granted bool) {
		log.Info("capability changed", "capability", string(c), "granted", granted)
	})

	runs := audit.NewSQLiteRepository(a.db.DB)
	engine := automation.NewEngine(a.store, runs, env)
	engine.SetLogger(log.Component("engine"))

	// MQTT is the event source and the device bus. Without it only the
	// HTTP event endpoint feeds the dispatcher.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMQTT(ctx, cfg, env, engine, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		engine.OnRun(automation.RunObserverFunc(func(run automation.Run) {
			influxClient.WriteRun(influxdb.RunMetric{
				Automation: run.Entry.Automation.String(),
				Title:      run.Title,
				State:      string(run.Entry.State),
				Duration:   run.Duration,
				Retry:      run.Retry,
				At:         run.Entry.CreatedAt,
			})
		}))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	tokens := auth.NewTokenRepository(a.db.DB)
	if n, pruneErr := tokens.DeleteExpired(ctx); pruneErr != nil {
		log.Warn("pruning expired tokens", "error", pruneErr)
	} else if n > 0 {
		log.Info("expired tokens pruned", "count", n)
	}

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Store:    a.store,
		Codec:    a.codec,
		Engine:   engine,
		Runs:     runs,
		Env:      env,
		Tokens:   tokens,
		DB:       a.db.DB,
		Version:  version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	// Runs still in flight after the server closes finish before MQTT
	// and the database go away.
	defer func() {
		log.Info("waiting for in-flight runs")
		engine.Wait()
	}()
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, a.db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// startMQTT connects to the broker, starts the event source and hooks the
// run announcer and the haptics capability to the link state.
func startMQTT(ctx context.Context, cfg *config.Config, env *capability.Env, engine *automation.Engine, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
	src, err := source.New(source.Options{
		MQTT:       client,
		Dispatcher: engine,
		Grants:     env,
		QoS:        &qos,
		Logger:     log.Component("source"),
	})
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("creating event source: %w", err)
	}

	env.SetPublisher(client)
	env.Grant(step.CapabilityHaptics)

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		env.Grant(step.CapabilityHaptics)
		src.HandleConnect()
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		env.Revoke(step.CapabilityHaptics)
		src.HandleDisconnect(err)
	})

	// Partial subscription failure leaves the affected triggers unready
	// rather than stopping the service.
	if err := src.Start(ctx); err != nil {
		log.Warn("some event subscriptions failed", "error", err)
	}
	context.AfterFunc(ctx, src.Stop)

	engine.OnRun(source.NewAnnouncer(client, log.Component("announcer")))
	return client, nil
}

// healthCheck verifies every started component.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
