package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store backend selection.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	// Pub/Sub transport
	PubsubTopic     string
	Subscription    string
	GoogleProjectID string
	CredentialsFile string

	// Behavior
	Mode        string // "ai" or "rules"; explicit, handed to the pipeline
	GraceWindow time.Duration
	AITimeout   time.Duration

	// AWS (Bedrock + DynamoDB)
	AWSRegion         string
	InterpretModelID  string
	EvaluateModelID   string
	StoreBackend      string
	ReservationsTable string
	UsersTable        string
	ServersTable      string

	MetricsPort int
	LogLevel    string
}

func Load() *Config {
	cfg := &Config{
		Subscription:      strings.TrimSpace(getEnv("RESERVATION_REQUEST_SUBSCRIPTION", os.Getenv("GENIE_PUBSUB_SUBSCRIPTION"))),
		PubsubTopic:       strings.TrimSpace(getEnv("RESERVATION_RESULT_TOPIC", os.Getenv("GENIE_PUBSUB_TOPIC"))),
		CredentialsFile:   strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), os.Getenv("GENIE_GSA_CREDENTIALS"))),
		Mode:              strings.TrimSpace(getEnv("GENIE_MODE", "rules")),
		GraceWindow:       time.Duration(getEnvInt("GENIE_GRACE_WINDOW_MINUTES", 60)) * time.Minute,
		AITimeout:         time.Duration(getEnvInt("GENIE_AI_TIMEOUT_SECONDS", 30)) * time.Second,
		AWSRegion:         strings.TrimSpace(getEnv("AWS_REGION", "us-east-1")),
		InterpretModelID:  strings.TrimSpace(getEnv("GENIE_INTERPRET_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")),
		EvaluateModelID:   strings.TrimSpace(getEnv("GENIE_EVALUATE_MODEL_ID", "anthropic.claude-3-sonnet-20240229-v1:0")),
		StoreBackend:      strings.TrimSpace(getEnv("GENIE_STORE", StoreMemory)),
		ReservationsTable: strings.TrimSpace(getEnv("RESERVATIONS_TABLE", "gpu-genie-reservations")),
		UsersTable:        strings.TrimSpace(getEnv("USERS_TABLE", "gpu-genie-users")),
		ServersTable:      strings.TrimSpace(getEnv("GPU_SERVERS_TABLE", "gpu-genie-gpu-servers")),
		MetricsPort:       getEnvInt("GENIE_METRICS_PORT", 8080),
		LogLevel:          strings.TrimSpace(getEnv("GENIE_LOG_LEVEL", "info")),
	}

	cfg.GoogleProjectID = getGoogleProjectID(cfg.CredentialsFile, strings.TrimSpace(getEnv("GENIE_PUBSUB_PROJECT_ID", "")))
	if cfg.GoogleProjectID == "" {
		log.Warn().Msg("Google project ID not resolved; set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_PROJECT_ID or GENIE_PUBSUB_PROJECT_ID")
	}
	if cfg.Subscription == "" {
		log.Warn().Msg("Pub/Sub subscription not set; set RESERVATION_REQUEST_SUBSCRIPTION or GENIE_PUBSUB_SUBSCRIPTION")
	}
	if cfg.PubsubTopic == "" {
		log.Warn().Msg("Pub/Sub topic not set; set RESERVATION_RESULT_TOPIC or GENIE_PUBSUB_TOPIC")
	}
	if cfg.Mode != "ai" && cfg.Mode != "rules" {
		log.Warn().Str("mode", cfg.Mode).Msg("unknown GENIE_MODE; falling back to rules")
		cfg.Mode = "rules"
	}
	if cfg.StoreBackend != StoreMemory && cfg.StoreBackend != StoreDynamoDB {
		log.Warn().Str("store", cfg.StoreBackend).Msg("unknown GENIE_STORE; falling back to memory")
		cfg.StoreBackend = StoreMemory
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.MetricsPort))
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"projectID":           c.GoogleProjectID,
		"requestSubscription": c.Subscription,
		"resultTopic":         c.PubsubTopic,
		"mode":                c.Mode,
		"storeBackend":        c.StoreBackend,
		"awsRegion":           c.AWSRegion,
		"interpretModelID":    c.InterpretModelID,
		"evaluateModelID":     c.EvaluateModelID,
		"graceWindow":         c.GraceWindow.String(),
		"aiTimeout":           c.AITimeout.String(),
		"metricsPort":         c.MetricsPort,
		"logLevel":            c.LogLevel,
		"credentialsProvided": c.CredentialsFile != "",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		fmt.Printf("invalid int for %s: %s\n", key, v)
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func projectIDFromCredentials(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return "", err
	}
	return x.ProjectID, nil
}

func getGoogleProjectID(credsFile string, explicit string) string {
	// 1) Prefer GOOGLE_APPLICATION_CREDENTIALS if set
	if p := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); p != "" {
		log.Info().Str("credsFile", p).Msg("GOOGLE_APPLICATION_CREDENTIALS is set; extracting project_id from credentials file")
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			return strings.TrimSpace(pid)
		}
		log.Warn().Str("credsFile", p).Msg("project_id not found in credentials file or unreadable")
	}

	// 2) Explicit override from genie env
	if explicit := strings.TrimSpace(explicit); explicit != "" {
		log.Info().Str("projectID", explicit).Msg("using GENIE_PUBSUB_PROJECT_ID for Google project")
		return explicit
	}

	// 3) External k8s override
	if v := strings.TrimSpace(os.Getenv("GOOGLE_PROJECT_ID")); v != "" {
		log.Info().Str("projectID", v).Msg("using GOOGLE_PROJECT_ID from environment")
		return v
	}

	// 4) Common Google envs
	if v := firstNonEmpty(os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCLOUD_PROJECT"), os.Getenv("GCP_PROJECT")); strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		log.Info().Str("projectID", v).Msg("using Google project from common environment variables")
		return v
	}

	// 5) Fallback to provided credentials file path (GENIE_GSA_CREDENTIALS)
	if p := strings.TrimSpace(credsFile); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Info().Str("credsFile", p).Msg("using project_id from provided credentials file")
			return strings.TrimSpace(pid)
		}
	}
	return ""
}
