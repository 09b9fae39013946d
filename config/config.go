// Package config loads runtime settings in layers: built-in defaults, a
// .env file, an optional YAML file, then the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/client"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/session"
)

type Config struct {
	N8N    N8N    `yaml:"n8n"`
	HTTP   HTTP   `yaml:"http"`
	Store  Store  `yaml:"store"`
	Server Server `yaml:"server"`
	Log    Log    `yaml:"log"`
	MQTT   MQTT   `yaml:"mqtt"`
}

type N8N struct {
	BaseURL string `yaml:"base_url"`
	// Endpoints overrides individual webhook URLs by endpoint id.
	Endpoints map[string]string `yaml:"endpoints"`
}

type HTTP struct {
	Timeout        time.Duration `yaml:"timeout"`
	FetchRetries   int           `yaml:"fetch_retries"`
	BatchMultipart bool          `yaml:"batch_multipart"`
}

type Store struct {
	Driver        string        `yaml:"driver"`
	Path          string        `yaml:"path"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	PurgeSchedule string        `yaml:"purge_schedule"`
}

type Server struct {
	ListenAddr string `yaml:"listen_addr"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// Enabled reports whether lifecycle events should be published.
func (m MQTT) Enabled() bool {
	return strings.TrimSpace(m.Broker) != ""
}

func Defaults() Config {
	return Config{
		N8N: N8N{BaseURL: client.DefaultBaseURL},
		HTTP: HTTP{
			Timeout: 30 * time.Second,
		},
		Store: Store{
			Driver:        session.DriverMemory,
			Path:          "recoverymon.db",
			SessionTTL:    24 * time.Hour,
			PurgeSchedule: "@every 15m",
		},
		Server: Server{ListenAddr: ":8080"},
		Log:    Log{Level: "info", Format: "console"},
		MQTT:   MQTT{ClientID: "recoverymon", Topic: "recoverymon/transitions"},
	}
}

// LoadOptions locates the layered sources. Empty paths are skipped, a
// missing .env is not an error.
type LoadOptions struct {
	EnvFile    string
	ConfigFile string
	// Lookup reads the environment, os.LookupEnv when nil.
	Lookup func(string) (string, bool)
}

// Load builds a validated Config.
func Load(opts LoadOptions) (Config, error) {
	cfg := Defaults()

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var dotenv map[string]string
	if path := strings.TrimSpace(opts.EnvFile); path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			dotenv = values
		case !os.IsNotExist(err):
			return Config{}, monitoring.CloneError(monitoring.ErrInvalidValue, "reading "+path, err, nil)
		}
	}
	if err := applyEnv(&cfg, mapLookup(dotenv)); err != nil {
		return Config{}, err
	}

	if path := strings.TrimSpace(opts.ConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, monitoring.CloneError(monitoring.ErrInvalidValue, "reading "+path, err, nil)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, monitoring.CloneError(monitoring.ErrInvalidValue, "parsing "+path, err, nil)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// endpointKeys maps each webhook to its URL override variable.
var endpointKeys = map[string]client.EndpointID{
	"DOCTOR_CONFIG_URL":      client.DoctorConfig,
	"WORKFLOW_X_MANUAL_URL":  client.WorkflowManual,
	"WORKFLOW_Y_AI_URL":      client.WorkflowAI,
	"GET_PATIENT_PARAMS_URL": client.PatientParams,
	"WORKFLOW_Z_URL":         client.WorkflowSchema,
	"PROCESS_SUBMISSION_URL": client.ProcessSubmission,
	"SUBMIT_DATA_URL":        client.SubmitData,
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	str("N8N_BASE_URL", &cfg.N8N.BaseURL)
	for key, id := range endpointKeys {
		if v, ok := get(key); ok && v != "" {
			if cfg.N8N.Endpoints == nil {
				cfg.N8N.Endpoints = map[string]string{}
			}
			cfg.N8N.Endpoints[string(id)] = v
		}
	}

	if v, ok := get("HTTP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return monitoring.InvalidValue("HTTP_TIMEOUT", err.Error())
		}
		cfg.HTTP.Timeout = d
	}
	if v, ok := get("FETCH_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return monitoring.InvalidValue("FETCH_RETRIES", err.Error())
		}
		cfg.HTTP.FetchRetries = n
	}
	if v, ok := get("BATCH_MULTIPART"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return monitoring.InvalidValue("BATCH_MULTIPART", err.Error())
		}
		cfg.HTTP.BatchMultipart = b
	}

	str("STORE_DRIVER", &cfg.Store.Driver)
	str("DB_PATH", &cfg.Store.Path)
	if v, ok := get("SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return monitoring.InvalidValue("SESSION_TTL", err.Error())
		}
		cfg.Store.SessionTTL = d
	}
	str("PURGE_SCHEDULE", &cfg.Store.PurgeSchedule)

	str("LISTEN_ADDR", &cfg.Server.ListenAddr)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)

	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("MQTT_TOPIC", &cfg.MQTT.Topic)
	return nil
}

func (c Config) Validate() error {
	if err := c.Endpoints().Validate(); err != nil {
		return monitoring.CloneError(monitoring.ErrInvalidValue, err.Error(), err, map[string]any{
			monitoring.MetaFieldID: "n8n",
		})
	}
	for id := range c.N8N.Endpoints {
		if !knownEndpoint(client.EndpointID(id)) {
			return monitoring.InvalidValue("n8n.endpoints", "unknown endpoint "+id)
		}
	}
	if c.HTTP.Timeout < 0 {
		return monitoring.InvalidValue("HTTP_TIMEOUT", "must not be negative")
	}
	if c.HTTP.FetchRetries < 0 {
		return monitoring.InvalidValue("FETCH_RETRIES", "must not be negative")
	}
	switch strings.ToLower(c.Store.Driver) {
	case session.DriverMemory, session.DriverSQLite:
	default:
		return monitoring.InvalidValue("STORE_DRIVER", "expected memory or sqlite")
	}
	if c.Store.SessionTTL < 0 {
		return monitoring.InvalidValue("SESSION_TTL", "must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
	default:
		return monitoring.InvalidValue("LOG_FORMAT", "expected json or console")
	}
	return nil
}

func knownEndpoint(id client.EndpointID) bool {
	for _, known := range client.AllEndpoints() {
		if known == id {
			return true
		}
	}
	return false
}

// Endpoints resolves every webhook URL.
func (c Config) Endpoints() client.Endpoints {
	overrides := make(map[client.EndpointID]string, len(c.N8N.Endpoints))
	for id, url := range c.N8N.Endpoints {
		overrides[client.EndpointID(id)] = url
	}
	return client.DefaultEndpoints(c.N8N.BaseURL).With(overrides)
}

func (c Config) LogOptions() logging.Options {
	return logging.Options{
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		File:    c.Log.File,
		Console: c.Log.File != "",
	}
}
