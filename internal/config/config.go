package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
	"circuitscope/internal/errors"
)

// Config represents the complete detection engine configuration
type Config struct {
	Detection ioi.DetectionConfig
	Engine    EngineConfig
	Model     core.ModelKind
}

// EngineConfig holds scoring fan-out settings
type EngineConfig struct {
	Workers int
}

// thresholdVars maps each role to its environment override.
var thresholdVars = map[ioi.Role]string{
	ioi.RoleNameMover:       "IOI_NAME_MOVER_THRESHOLD",
	ioi.RoleSInhibition:     "IOI_S_INHIBITION_THRESHOLD",
	ioi.RoleDuplicateToken:  "IOI_DUPLICATE_TOKEN_THRESHOLD",
	ioi.RolePreviousToken:   "IOI_PREVIOUS_TOKEN_THRESHOLD",
	ioi.RoleBackupNameMover: "IOI_BACKUP_NAME_MOVER_THRESHOLD",
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Optional .env for development; absence is the normal case.
	_ = godotenv.Load()

	model, err := core.ParseModelKind(getEnvOrDefault("IOI_MODEL", string(core.ModelGPT2)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load model kind")
	}

	config := &Config{
		Detection: loadDetectionConfig(),
		Engine:    loadEngineConfig(),
		Model:     model,
	}

	if err := config.Detection.Validate(); err != nil {
		return nil, errors.Wrap(err, "detection configuration invalid")
	}
	if config.Engine.Workers < 1 {
		return nil, errors.ConfigInvalid("IOI_WORKERS must be >= 1")
	}

	return config, nil
}

func loadDetectionConfig() ioi.DetectionConfig {
	cfg := ioi.DefaultConfig()

	for role, key := range thresholdVars {
		cfg.Thresholds[role] = getEnvFloatOrDefault(key, cfg.Thresholds[role])
	}
	cfg.TopK = getEnvIntOrDefault("IOI_TOP_K", cfg.TopK)

	if getEnvBoolOrDefault("IOI_GPT2_LAYER_RANGES", false) {
		cfg.LayerRanges = ioi.GPT2SmallLayerRanges()
	}

	return cfg
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		Workers: getEnvIntOrDefault("IOI_WORKERS", runtime.NumCPU()),
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
