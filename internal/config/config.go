package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Groq struct {
		APIKey    string  `yaml:"-"` // env only, never in the file
		BaseURL   string  `yaml:"baseURL"`
		Model     string  `yaml:"model"`
		MaxTokens int     `yaml:"maxTokens"`
		Timeout   int     `yaml:"timeoutSeconds"`
	} `yaml:"groq"`

	Auth struct {
		JWKSURL             string   `yaml:"jwksURL"`
		RequireVerification bool     `yaml:"requireVerification"`
		RequireAPIKey       bool     `yaml:"requireAPIKey"`
		APIKeys             []string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Quota struct {
		DailyLimit int `yaml:"dailyLimit"`
	} `yaml:"quota"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// Load reads config.yaml (optional) and applies environment overrides.
// A missing file is not an error so the service can run from env alone.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8000
	cfg.Groq.BaseURL = "https://api.groq.com/openai/v1"
	cfg.Groq.Model = "llama-3.3-70b-versatile"
	cfg.Groq.MaxTokens = 4000
	cfg.Groq.Timeout = 120
	cfg.Auth.RequireVerification = true
	cfg.Quota.DailyLimit = 7
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Groq.APIKey = os.Getenv("GROQ_API_KEY")

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GROQ_BASE_URL"); v != "" {
		cfg.Groq.BaseURL = v
	}
	if v := os.Getenv("GROQ_MODEL"); v != "" {
		cfg.Groq.Model = v
	}
	if v := os.Getenv("CLERK_JWKS_URL"); v != "" {
		cfg.Auth.JWKSURL = v
	}
	if v := os.Getenv("REQUIRE_JWT_VERIFICATION"); v != "" {
		cfg.Auth.RequireVerification = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("REQUIRE_API_KEY"); v != "" {
		cfg.Auth.RequireAPIKey = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("VALID_API_KEYS"); v != "" {
		cfg.Auth.APIKeys = splitAndTrim(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("DAILY_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Quota.DailyLimit = n
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
