package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads envFile (if present) into the process environment and copies secrets into
// cfg. Variables already set in the environment win over the file.
// KIJI_AI_TOKEN takes precedence over OPENAI_API_KEY.
func LoadEnv(cfg *Config, envFile string) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}
	cfg.AI.Token = firstEnv("KIJI_AI_TOKEN", "OPENAI_API_KEY")
	if host := os.Getenv("KIJI_AI_HOST"); host != "" {
		cfg.AI.Host = host
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
