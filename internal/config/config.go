package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv  string
	Port     string
	Database DatabaseConfig
	Editor   EditorConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// EditorConfig tunes the layout editor session.
type EditorConfig struct {
	// Warehouse footprint, meters, centered on the origin.
	WarehouseWidth float64
	WarehouseDepth float64
	// Broad-phase grid cell size; 0 uses the built-in default.
	GridCellSize float64
	// Undo history depth; 0 uses the store default.
	HistoryLimit int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	editor, err := loadEditorConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		NodeEnv: getEnv("NODE_ENV", "development"),
		Port:    getEnv("PORT", "3001"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "blueprint"),
		},
		Editor: editor,
	}, nil
}

func loadEditorConfig() (EditorConfig, error) {
	cfg := EditorConfig{}
	var err error

	if cfg.WarehouseWidth, err = getFloat("WAREHOUSE_WIDTH", 100); err != nil {
		return cfg, err
	}
	if cfg.WarehouseDepth, err = getFloat("WAREHOUSE_DEPTH", 100); err != nil {
		return cfg, err
	}
	if cfg.GridCellSize, err = getFloat("GRID_CELL_SIZE", 0); err != nil {
		return cfg, err
	}

	if raw := os.Getenv("HISTORY_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid HISTORY_LIMIT %q: %w", raw, err)
		}
		cfg.HistoryLimit = limit
	}
	return cfg, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
