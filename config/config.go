package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          int
	Domain        string
	AdminPassword string
	AuthSecret    string
	DataDir       string
	FFmpegBin     string
	FFprobeBin    string
	ProbeTimeout  time.Duration
	BehindProxy   bool
}

func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "7891"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	probeTimeoutSec, err := strconv.Atoi(getEnv("PROBE_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROBE_TIMEOUT_SECONDS: %w", err)
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD is required")
	}

	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}

	return &Config{
		Port:          port,
		Domain:        getEnv("DOMAIN", "localhost:7891"),
		AdminPassword: adminPassword,
		AuthSecret:    authSecret,
		DataDir:       getEnv("DATA_DIR", "/data"),
		FFmpegBin:     getEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:    getEnv("FFPROBE_BIN", "ffprobe"),
		ProbeTimeout:  time.Duration(probeTimeoutSec) * time.Second,
		BehindProxy:   getEnv("BEHIND_PROXY", "false") == "true",
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
