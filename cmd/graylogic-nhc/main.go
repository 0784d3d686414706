// Gray Logic NHC Bridge
//
// This is the main entry point for the Niko Home Control bridge daemon.
// The bridge connects a first-generation NHC controller to the Gray Logic
// MQTT bus:
//   - Commands from Core are translated into controller actions
//   - Controller events are projected onto retained MQTT state topics
//   - Endpoint availability and bridge health are reported continuously
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-nhc/migrations"

	"github.com/nerrad567/gray-logic-nhc/internal/api"
	"github.com/nerrad567/gray-logic-nhc/internal/bridge"
	"github.com/nerrad567/gray-logic-nhc/internal/endpoint"
	"github.com/nerrad567/gray-logic-nhc/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nhc/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-nhc/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-nhc/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-nhc/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic NHC bridge",
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

	// Open database
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

	// Initialise endpoint registry
	endpointRepo := endpoint.NewSQLiteRepository(db.DB)
	endpointRegistry := endpoint.NewRegistry(endpointRepo)
	endpointRegistry.SetLogger(log)

	if refreshErr := endpointRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading endpoint registry: %w", refreshErr)
	}
	log.Info("endpoint registry initialised", "endpoints", endpointRegistry.GetEndpointCount())

	// Load the NHC bridge configuration before connecting to MQTT so the
	// broker registers the bridge health LWT at connect time.
	if !cfg.NHC.Enabled {
		return fmt.Errorf("nhc bridge is disabled in configuration, nothing to run")
	}
	nhcCfg, err := bridge.LoadConfig(cfg.NHC.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading NHC bridge config: %w", err)
	}
	log.Info("NHC bridge config loaded",
		"path", cfg.NHC.ConfigFile,
		"bridge_id", nhcCfg.Bridge.ID,
		"endpoints", len(nhcCfg.Endpoints),
	)

	// Connect to MQTT broker with the bridge health LWT
	lwtPayload, err := json.Marshal(bridge.NewLWTMessage(nhcCfg.Bridge.ID))
	if err != nil {
		return fmt.Errorf("building LWT payload: %w", err)
	}
	mqttClient, err := mqtt.ConnectWithWill(cfg.MQTT, mqtt.Will{
		Topic:    bridge.HealthTopic(),
		Payload:  lwtPayload,
		QoS:      1,
		Retained: true,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Create and start the bridge
	nhcBridge, err := bridge.NewBridge(bridge.BridgeOptions{
		Config:     nhcCfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Version:    version,
		Logger:     log,
		Registry:   &registryAdapter{registry: endpointRegistry},
	})
	if err != nil {
		return fmt.Errorf("creating NHC bridge: %w", err)
	}
	if influxClient != nil {
		nhcBridge.Health().SetRecorder(influxClient)
	}
	if startErr := nhcBridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting NHC bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping NHC bridge")
		nhcBridge.Stop()
	}()
	log.Info("NHC bridge started")

	// Establish the controller session. A failed first attempt is not
	// fatal: the bridge reports bridge_offline and a background loop keeps
	// retrying until the controller becomes reachable.
	sessions := &sessionHolder{}
	defer func() {
		log.Info("closing controller session")
		sessions.Close()
	}()
	connectController(ctx, nhcCfg, nhcBridge, sessions, log)

	// Start API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: endpointRegistry,
		Bridge:   nhcBridge,
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Controller session (if established)
	// 3. NHC bridge
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("Gray Logic NHC bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_NHC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_NHC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// controllerSession is the part of the nhc client run() owns at shutdown.
type controllerSession interface {
	Close() error
}

// sessionHolder tracks the controller session installed by connectController
// so run()'s defer chain can close it. The session may arrive late when the
// first dial fails and the background retry loop connects it; a session
// installed after Close is closed immediately.
type sessionHolder struct {
	mu      sync.Mutex
	closed  bool
	session controllerSession
}

func (h *sessionHolder) set(s controllerSession) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Close() //nolint:errcheck // nhc client Close always returns nil
		return
	}
	h.session = s
	h.mu.Unlock()
}

// Close shuts down the held session, if any. Safe to call with no session
// installed, and idempotent.
func (h *sessionHolder) Close() {
	h.mu.Lock()
	h.closed = true
	s := h.session
	h.session = nil
	h.mu.Unlock()
	if s != nil {
		s.Close() //nolint:errcheck // nhc client Close always returns nil
	}
}

// connectController dials the NHC controller and installs the session on
// the bridge. On failure it launches a background retry loop so the bridge
// comes online as soon as the controller is reachable.
func connectController(ctx context.Context, nhcCfg *bridge.Config, nhcBridge *bridge.Bridge, sessions *sessionHolder, log *logging.Logger) {
	client, err := dialController(ctx, nhcCfg)
	if err == nil {
		log.Info("controller connected",
			"address", fmt.Sprintf("%s:%d", nhcCfg.Controller.Host, nhcCfg.Controller.Port),
			"actions", len(client.Actions()),
		)
		client.SetLogger(log)
		sessions.set(client)
		nhcBridge.SetConnection(bridge.ClientConnector{Client: client})
		return
	}

	log.Warn("initial controller connection failed, retrying in background",
		"error", err,
		"interval", nhcCfg.GetReconnectInterval(),
	)

	go func() {
		ticker := time.NewTicker(nhcCfg.GetReconnectInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				client, err := dialController(ctx, nhcCfg)
				if err != nil {
					log.Debug("controller reconnect attempt failed", "error", err)
					continue
				}
				log.Info("controller connected", "actions", len(client.Actions()))
				client.SetLogger(log)
				sessions.set(client)
				nhcBridge.SetConnection(bridge.ClientConnector{Client: client})
				return
			}
		}
	}()
}

// dialController establishes an NHC controller session from bridge config.
func dialController(ctx context.Context, nhcCfg *bridge.Config) (*nhc.Client, error) {
	return nhc.Connect(ctx, nhc.Config{
		Host:           nhcCfg.Controller.Host,
		Port:           nhcCfg.Controller.Port,
		ConnectTimeout: time.Duration(nhcCfg.Controller.ConnectTimeout) * time.Second,
		ReadTimeout:    time.Duration(nhcCfg.Controller.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(nhcCfg.Controller.WriteTimeout) * time.Second,
		EventQueueSize: nhcCfg.Controller.EventQueueSize,
		EventWorkers:   nhcCfg.Controller.EventWorkers,
	})
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Controller session health is reported continuously by the bridge's
	// health reporter; a missing controller is degraded, not fatal.

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The primary difference is the Subscribe handler
// signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements bridge.MQTTClient.
// No-op: the MQTT client lifecycle is managed by run()'s defer chain.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {
}

// registryAdapter adapts *endpoint.Registry to the bridge's EndpointRegistry
// interface, converting between the bridge's plain types and the endpoint
// package's named types.
type registryAdapter struct {
	registry *endpoint.Registry
}

// CreateEndpointIfNotExists implements bridge.EndpointRegistry.
func (a *registryAdapter) CreateEndpointIfNotExists(ctx context.Context, seed bridge.EndpointSeed) error {
	ep := &endpoint.Endpoint{
		ID:       seed.ID,
		Name:     seed.Name,
		ActionID: seed.ActionID,
		Step:     seed.Step,
		Invert:   seed.Invert,
	}
	if ep.Name == "" {
		ep.Name = seed.ID
	}
	if seed.Room != "" {
		room := seed.Room
		ep.Room = &room
	}
	return a.registry.EnsureEndpoint(ctx, ep)
}

// SetEndpointState implements bridge.EndpointRegistry.
func (a *registryAdapter) SetEndpointState(ctx context.Context, id string, state map[string]any) error {
	return a.registry.SetEndpointState(ctx, id, endpoint.State(state))
}

// SetEndpointHealth implements bridge.EndpointRegistry.
func (a *registryAdapter) SetEndpointHealth(ctx context.Context, id string, status string) error {
	return a.registry.SetEndpointHealth(ctx, id, endpoint.HealthStatus(status))
}

// SetEndpointProperties implements bridge.EndpointRegistry.
func (a *registryAdapter) SetEndpointProperties(ctx context.Context, id string, props map[string]string) error {
	return a.registry.SetEndpointProperties(ctx, id, endpoint.Properties(props))
}
