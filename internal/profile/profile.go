package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Server
	Mode string // "prod", "dev" or "demo"
	Addr string
	Port int
	Data string

	// Database
	Driver string // "postgres" or "sqlite"
	DSN    string

	// Session cache
	RedisAddr     string // empty disables redis, falls back to in-memory
	RedisPassword string
	SessionTTL    time.Duration

	// AI oracle (OpenAI-compatible protocol)
	OracleProvider string
	OracleAPIKey   string
	OracleBaseURL  string
	OracleModel    string
	OracleTimeout  time.Duration
	OracleRPS      float64 // provider quota guard, requests per second

	// Transports
	TelegramBotToken string
	GatewayBaseURL   string // WhatsApp gateway send endpoint
	GatewayAPIKey    string

	// Document service (ROI reports); empty disables attachment
	DocServiceURL string

	// Turn processing
	TurnTimeout time.Duration

	Version string
}

// Provider default base URLs for the oracle.
// Used when PROPFLOW_ORACLE_BASE_URL is not explicitly set.
var oracleProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "openai/gpt-4o-mini",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsOracleEnabled reports whether the AI oracle is configured.
// Without it the state machine still runs, degrading to button prompts.
func (p *Profile) IsOracleEnabled() bool {
	return p.OracleAPIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.RedisAddr = getEnvOrDefault("PROPFLOW_REDIS_ADDR", "")
	p.RedisPassword = getEnvOrDefault("PROPFLOW_REDIS_PASSWORD", "")
	p.SessionTTL = getEnvOrDefaultSeconds("PROPFLOW_SESSION_TTL_SECONDS", 24*time.Hour)

	p.OracleProvider = getEnvOrDefault("PROPFLOW_ORACLE_PROVIDER", "openai")
	p.OracleAPIKey = getEnvOrDefault("PROPFLOW_ORACLE_API_KEY", "")
	p.OracleBaseURL = getEnvOrDefault("PROPFLOW_ORACLE_BASE_URL", "")
	p.OracleModel = getEnvOrDefault("PROPFLOW_ORACLE_MODEL", "")
	p.OracleTimeout = getEnvOrDefaultSeconds("PROPFLOW_ORACLE_TIMEOUT_SECONDS", 10*time.Second)
	p.OracleRPS = getEnvOrDefaultFloat("PROPFLOW_ORACLE_RPS", 5)

	if defaults, ok := oracleProviderDefaults[p.OracleProvider]; ok {
		if p.OracleBaseURL == "" {
			p.OracleBaseURL = defaults.BaseURL
		}
		if p.OracleModel == "" {
			p.OracleModel = defaults.Model
		}
	}

	p.TelegramBotToken = getEnvOrDefault("PROPFLOW_TELEGRAM_BOT_TOKEN", "")
	p.GatewayBaseURL = getEnvOrDefault("PROPFLOW_GATEWAY_BASE_URL", "")
	p.GatewayAPIKey = getEnvOrDefault("PROPFLOW_GATEWAY_API_KEY", "")
	p.DocServiceURL = getEnvOrDefault("PROPFLOW_DOC_SERVICE_URL", "")

	p.TurnTimeout = getEnvOrDefaultSeconds("PROPFLOW_TURN_TIMEOUT_SECONDS", 15*time.Second)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and rejects unusable configurations.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("propflow_%s.db", p.Mode)) + "?_time_format=sqlite"
		}
	}

	if p.TurnTimeout <= 0 {
		p.TurnTimeout = 15 * time.Second
	}
	if p.OracleTimeout > p.TurnTimeout {
		// The oracle can never outlive the turn it serves.
		p.OracleTimeout = p.TurnTimeout - 2*time.Second
	}

	return nil
}
