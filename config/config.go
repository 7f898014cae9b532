package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment
// variables, with list/map settings optionally overridden by a YAML file.
type Config struct {
	InputDir    string
	FilePattern string
	OutputPath  string
	Policy      string
	LoadWorkers int
	LogLevel    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	MaxRetries       int

	SQLitePath     string
	ReportXLSXPath string

	Pipeline PipelineConfig
	Analysis AnalysisConfig
}

// PipelineConfig tunes the Cleaner.
type PipelineConfig struct {
	DroppedColumns   []string          `yaml:"dropped_columns"`
	OwnershipAliases map[string]string `yaml:"ownership_aliases"`
}

// AnalysisConfig holds the aggregator parameters used by the report command.
type AnalysisConfig struct {
	Cities         []string `yaml:"cities"`
	BinWidth       float64  `yaml:"bin_width"`
	BuiltByCutoff  int      `yaml:"built_by_cutoff"`
	ExcludedOwners []string `yaml:"excluded_ownership"`
}

type fileConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// DefaultDroppedColumns are the geolocation, amenity-distance and listing
// metadata columns removed by the Cleaner.
var DefaultDroppedColumns = []string{
	"latitude", "longitude", "poiCount", "schoolDistance", "clinicDistance",
	"postOfficeDistance", "kindergartenDistance", "restaurantDistance",
	"collegeDistance", "pharmacyDistance", "condition", "buildingMaterial", "type",
}

// DefaultOwnershipAliases maps source ownership labels to canonical ones.
var DefaultOwnershipAliases = map[string]string{
	"udział": "share",
}

// Load reads the .env file, the environment and the optional CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		InputDir:    getEnv("INPUT_DIR", "data"),
		FilePattern: getEnv("FILE_PATTERN", "apartments_pl_*.csv"),
		OutputPath:  getEnv("OUTPUT_PATH", "data/data_dropped.csv"),
		Policy:      getEnv("MISSING_POLICY", "drop"),
		LoadWorkers: getEnvInt("LOAD_WORKERS", 4),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "apartments"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "apartments"),
		PostgresDB:       getEnv("POSTGRES_DB", "apartments"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),

		SQLitePath:     getEnv("SQLITE_PATH", ""),
		ReportXLSXPath: getEnv("REPORT_XLSX_PATH", ""),

		Pipeline: PipelineConfig{
			DroppedColumns:   append([]string(nil), DefaultDroppedColumns...),
			OwnershipAliases: copyAliases(DefaultOwnershipAliases),
		},
		Analysis: AnalysisConfig{
			Cities:         getEnvList("ANALYSIS_CITIES", []string{"krakow", "warszawa", "lodz", "szczecin"}),
			BinWidth:       getEnvFloat("BIN_WIDTH", 1.0),
			BuiltByCutoff:  getEnvInt("BUILT_BY_CUTOFF", 2001),
			ExcludedOwners: []string{"share"},
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyFile overlays non-empty YAML settings on top of cfg.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if len(fc.Pipeline.DroppedColumns) > 0 {
		c.Pipeline.DroppedColumns = fc.Pipeline.DroppedColumns
	}
	for k, v := range fc.Pipeline.OwnershipAliases {
		c.Pipeline.OwnershipAliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if len(fc.Analysis.Cities) > 0 {
		c.Analysis.Cities = fc.Analysis.Cities
	}
	if fc.Analysis.BinWidth > 0 {
		c.Analysis.BinWidth = fc.Analysis.BinWidth
	}
	if fc.Analysis.BuiltByCutoff > 0 {
		c.Analysis.BuiltByCutoff = fc.Analysis.BuiltByCutoff
	}
	if fc.Analysis.ExcludedOwners != nil {
		c.Analysis.ExcludedOwners = fc.Analysis.ExcludedOwners
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func copyAliases(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
