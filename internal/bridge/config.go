package bridge

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// Config is the root configuration for the NHC bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge     BridgeSettings     `yaml:"bridge"`
	Controller ControllerSettings `yaml:"controller"`
	Endpoints  []EndpointConfig   `yaml:"endpoints"`
}

// BridgeSettings contains bridge identity and operational settings.
type BridgeSettings struct {
	// ID uniquely identifies this bridge instance.
	// Used in MQTT client ID and health reporting.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`

	// Workers is the number of command worker goroutines.
	// Default: 4.
	Workers int `yaml:"workers"`

	// QueueSize is the capacity of the command worker queue.
	// Default: 64.
	QueueSize int `yaml:"queue_size"`
}

// ControllerSettings contains the controller connection settings.
type ControllerSettings struct {
	// Host is the controller address (IP or hostname). Required.
	Host string `yaml:"host"`

	// Port is the controller's TCP port. Default: 8000.
	Port int `yaml:"port"`

	// ConnectTimeout is the maximum time to establish the TCP
	// connection (seconds). Default: 10.
	ConnectTimeout int `yaml:"connect_timeout"`

	// ReadTimeout is the timeout for handshake responses (seconds).
	// Default: 10.
	ReadTimeout int `yaml:"read_timeout"`

	// WriteTimeout is the timeout for writing commands (seconds).
	// Default: 5.
	WriteTimeout int `yaml:"write_timeout"`

	// ReconnectInterval is the delay between background reconnection
	// attempts after a lost session (seconds). Default: 30.
	ReconnectInterval int `yaml:"reconnect_interval"`

	// EventQueueSize is the capacity of the session event queue.
	// Default: 256.
	EventQueueSize int `yaml:"event_queue_size"`

	// EventWorkers is the number of event delivery goroutines.
	// Default: 2.
	EventWorkers int `yaml:"event_workers"`
}

// EndpointConfig maps one endpoint to one controller action.
type EndpointConfig struct {
	// EndpointID is the identifier used in MQTT topics and the registry.
	// Must not contain '/'.
	EndpointID string `yaml:"endpoint_id"`

	// ActionID is the controller action id (decimal string).
	ActionID string `yaml:"action_id"`

	// Name is an optional display name. Defaults to the controller's
	// action name once bound.
	Name string `yaml:"name"`

	// Room is an optional room assignment. When empty, the controller's
	// location name is recorded instead.
	Room string `yaml:"room"`

	// Step is the dimmer step size for increase/decrease commands
	// (1-100). Default: 10. Ignored for non-dimmer endpoints.
	Step int `yaml:"step"`

	// Invert swaps shutter travel direction and position reporting for
	// installations wired the other way round.
	Invert bool `yaml:"invert"`
}

// LoadConfig reads configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NHC_BRIDGE_SECTION_KEY
// For example: NHC_BRIDGE_CONTROLLER_HOST, NHC_BRIDGE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeSettings{
			ID:             "nhc-bridge-01",
			HealthInterval: 30,
			Workers:        4,
			QueueSize:      64,
		},
		Controller: ControllerSettings{
			Port:              nhc.DefaultPort,
			ConnectTimeout:    10,
			ReadTimeout:       10,
			WriteTimeout:      5,
			ReconnectInterval: 30,
			EventQueueSize:    256,
			EventWorkers:      2,
		},
		Endpoints: []EndpointConfig{},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables follow the pattern: NHC_BRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NHC_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("NHC_BRIDGE_CONTROLLER_HOST"); v != "" {
		cfg.Controller.Host = v
	}
	if v := os.Getenv("NHC_BRIDGE_CONTROLLER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Controller.Port = port
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateController()...)
	errs = append(errs, c.validateEndpoints()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBridge validates bridge settings.
func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if c.Bridge.Workers < 1 {
		errs = append(errs, "bridge.workers must be at least 1")
	}
	if c.Bridge.QueueSize < 1 {
		errs = append(errs, "bridge.queue_size must be at least 1")
	}
	return errs
}

// validateController validates controller connection settings.
func (c *Config) validateController() []string {
	var errs []string
	if c.Controller.Host == "" {
		errs = append(errs, "controller.host is required")
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		errs = append(errs, "controller.port must be between 1 and 65535")
	}
	if c.Controller.ConnectTimeout < 1 {
		errs = append(errs, "controller.connect_timeout must be at least 1 second")
	}
	if c.Controller.ReconnectInterval < 1 {
		errs = append(errs, "controller.reconnect_interval must be at least 1 second")
	}
	return errs
}

// validateEndpoints validates endpoint configurations.
func (c *Config) validateEndpoints() []string {
	var errs []string
	endpointIDs := make(map[string]bool)
	actionIDs := make(map[string]bool)

	for i, ep := range c.Endpoints {
		if ep.EndpointID == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d].endpoint_id is required", i))
			continue
		}
		if strings.Contains(ep.EndpointID, "/") {
			errs = append(errs, fmt.Sprintf("endpoints[%d].endpoint_id %q must not contain '/'", i, ep.EndpointID))
		}
		if endpointIDs[ep.EndpointID] {
			errs = append(errs, fmt.Sprintf("endpoints[%d].endpoint_id %q is duplicate", i, ep.EndpointID))
		}
		endpointIDs[ep.EndpointID] = true

		if ep.ActionID == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d].action_id is required", i))
		} else {
			if _, err := strconv.Atoi(ep.ActionID); err != nil {
				errs = append(errs, fmt.Sprintf("endpoints[%d].action_id %q must be numeric", i, ep.ActionID))
			}
			if actionIDs[ep.ActionID] {
				errs = append(errs, fmt.Sprintf("endpoints[%d].action_id %q is duplicate", i, ep.ActionID))
			}
			actionIDs[ep.ActionID] = true
		}

		if ep.Step != 0 && (ep.Step < 1 || ep.Step > 100) {
			errs = append(errs, fmt.Sprintf("endpoints[%d].step must be between 1 and 100", i))
		}
	}

	return errs
}

// withStepDefault returns the endpoint config with a defaulted step size.
func (e EndpointConfig) withStepDefault() EndpointConfig {
	if e.Step == 0 {
		e.Step = DefaultDimStep
	}
	return e
}

// ToClientConfig converts controller settings to an nhc.Config.
func (c *Config) ToClientConfig() nhc.Config {
	return nhc.Config{
		Host:           c.Controller.Host,
		Port:           c.Controller.Port,
		ConnectTimeout: time.Duration(c.Controller.ConnectTimeout) * time.Second,
		ReadTimeout:    time.Duration(c.Controller.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(c.Controller.WriteTimeout) * time.Second,
		EventQueueSize: c.Controller.EventQueueSize,
		EventWorkers:   c.Controller.EventWorkers,
	}
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetReconnectInterval returns the reconnection delay as a Duration.
func (c *Config) GetReconnectInterval() time.Duration {
	return time.Duration(c.Controller.ReconnectInterval) * time.Second
}

// GetMQTTClientID returns the MQTT client ID derived from the bridge ID.
func (c *Config) GetMQTTClientID() string {
	return c.Bridge.ID + "-mqtt"
}
