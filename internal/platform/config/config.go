package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	// Airtable upstream. AirtableBase is the deployment-level default base
	// ID; services fall back to it when a request carries no base_id.
	AirtableBase   string
	AirtableToken  string
	AirtableAPIURL string

	// LLM orchestrator.
	GeminiAPIKey string
	DefaultModel string

	// Deployment tooling.
	PortmapFile string
	ComposeFile string

	ProbeInterval time.Duration

	EnableHealthProbes bool
	EnableSagaWorker   bool
	EnableOutboxRelay  bool
	EnablePortmapWatch bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "basehub"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8100"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	apiURL := strings.TrimSpace(os.Getenv("AIRTABLE_API_URL"))
	if apiURL == "" {
		apiURL = "https://api.airtable.com/v0"
	}

	model := strings.TrimSpace(os.Getenv("DEFAULT_MODEL"))
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		AirtableBase:   strings.TrimSpace(os.Getenv("AIRTABLE_BASE")),
		AirtableToken:  strings.TrimSpace(os.Getenv("AIRTABLE_TOKEN")),
		AirtableAPIURL: apiURL,

		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		DefaultModel: model,

		PortmapFile: strings.TrimSpace(os.Getenv("PORTMAP_FILE")),
		ComposeFile: strings.TrimSpace(os.Getenv("COMPOSE_FILE")),

		ProbeInterval: envDuration("PROBE_INTERVAL", 15*time.Second),

		EnableHealthProbes: envBool("ENABLE_HEALTH_PROBES", true),
		EnableSagaWorker:   envBool("ENABLE_SAGA_WORKER", true),
		EnableOutboxRelay:  envBool("ENABLE_OUTBOX_RELAY", true),
		EnablePortmapWatch: envBool("ENABLE_PORTMAP_WATCH", false),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
