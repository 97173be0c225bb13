package common

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	yaml "gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	OCR      OCRConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	SessionTTL     time.Duration
	SecureCookies  bool
	MaxUploadBytes int64
}

// StorageConfig holds upload storage configuration
type StorageConfig struct {
	UploadDir string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine           string
	Tesseract        string
	Lang             string
	TessdataDir      string
	PSM              int
	OEM              int
	TSVConfidence    bool
	HeicConverter    string
	ArtifactCacheDir string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "file:cards.db",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:       ":5000",
			GRPCAddr:       ":8081",
			SessionTTL:     24 * time.Hour,
			MaxUploadBytes: 10 << 20,
		},
		Storage: StorageConfig{
			UploadDir: "static/uploads",
		},
		OCR: OCRConfig{
			Engine:           "cli",
			Tesseract:        "tesseract",
			Lang:             "eng",
			HeicConverter:    "magick",
			ArtifactCacheDir: "./tmp",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfigFile loads a YAML config file, then applies environment overrides.
// An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := cfg.applyYAML(raw); err != nil {
			return nil, NewAppError("CONFIG_ERROR", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.SessionTTL = getEnvAsDuration("SESSION_TTL", c.Server.SessionTTL)
	c.Server.SecureCookies = getEnvAsBool("SECURE_COOKIES", c.Server.SecureCookies)
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)

	c.Storage.UploadDir = getEnv("UPLOAD_DIR", c.Storage.UploadDir)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("TESSERACT_OEM", c.OCR.OEM)
	c.OCR.TSVConfidence = getEnvAsBool("OCR_TSV_CONFIDENCE", c.OCR.TSVConfidence)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.UploadDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
	}
	if c.Server.SessionTTL <= 0 {
		return NewAppError("CONFIG_ERROR", "SESSION_TTL must be positive", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return NewAppError("CONFIG_ERROR", "DB_MIN_CONNS exceeds DB_MAX_CONNS", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "cli", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OCR_ENGINE %q is not one of cli | gosseract", c.OCR.Engine), ErrInvalidInput)
	}
	return nil
}

//go:embed config.schema.json
var configSchema []byte

// fileConfig mirrors config.schema.json. Pointers tell "absent" from zero.
type fileConfig struct {
	Database *struct {
		URL              *string `yaml:"url"`
		MaxConns         *int32  `yaml:"maxConns"`
		MinConns         *int32  `yaml:"minConns"`
		MaxConnLifetime  *string `yaml:"maxConnLifetime"`
		MaxConnIdleTime  *string `yaml:"maxConnIdleTime"`
		DialTimeout      *string `yaml:"dialTimeout"`
		StatementTimeout *string `yaml:"statementTimeout"`
	} `yaml:"database"`
	Server *struct {
		HTTPAddr       *string `yaml:"httpAddr"`
		GRPCAddr       *string `yaml:"grpcAddr"`
		SessionTTL     *string `yaml:"sessionTTL"`
		SecureCookies  *bool   `yaml:"secureCookies"`
		MaxUploadBytes *int64  `yaml:"maxUploadBytes"`
	} `yaml:"server"`
	Storage *struct {
		UploadDir *string `yaml:"uploadDir"`
	} `yaml:"storage"`
	OCR *struct {
		Engine           *string `yaml:"engine"`
		Tesseract        *string `yaml:"tesseract"`
		Lang             *string `yaml:"lang"`
		TessdataDir      *string `yaml:"tessdataDir"`
		PSM              *int    `yaml:"psm"`
		OEM              *int    `yaml:"oem"`
		TSVConfidence    *bool   `yaml:"tsvConfidence"`
		HeicConverter    *string `yaml:"heicConverter"`
		ArtifactCacheDir *string `yaml:"artifactCacheDir"`
	} `yaml:"ocr"`
	Log *struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) applyYAML(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := validateAgainstSchema(doc); err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}

	var errs []string
	dur := func(dst *time.Duration, src *string, name string) {
		if src == nil {
			return
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			return
		}
		*dst = d
	}

	if db := fc.Database; db != nil {
		setIf(&c.Database.DSN, db.URL)
		setIf(&c.Database.MaxConns, db.MaxConns)
		setIf(&c.Database.MinConns, db.MinConns)
		dur(&c.Database.MaxConnLifetime, db.MaxConnLifetime, "database.maxConnLifetime")
		dur(&c.Database.MaxConnIdleTime, db.MaxConnIdleTime, "database.maxConnIdleTime")
		dur(&c.Database.DialTimeout, db.DialTimeout, "database.dialTimeout")
		dur(&c.Database.StatementTimeout, db.StatementTimeout, "database.statementTimeout")
	}
	if s := fc.Server; s != nil {
		setIf(&c.Server.HTTPAddr, s.HTTPAddr)
		setIf(&c.Server.GRPCAddr, s.GRPCAddr)
		dur(&c.Server.SessionTTL, s.SessionTTL, "server.sessionTTL")
		setIf(&c.Server.SecureCookies, s.SecureCookies)
		setIf(&c.Server.MaxUploadBytes, s.MaxUploadBytes)
	}
	if s := fc.Storage; s != nil {
		setIf(&c.Storage.UploadDir, s.UploadDir)
	}
	if o := fc.OCR; o != nil {
		setIf(&c.OCR.Engine, o.Engine)
		setIf(&c.OCR.Tesseract, o.Tesseract)
		setIf(&c.OCR.Lang, o.Lang)
		setIf(&c.OCR.TessdataDir, o.TessdataDir)
		setIf(&c.OCR.PSM, o.PSM)
		setIf(&c.OCR.OEM, o.OEM)
		setIf(&c.OCR.TSVConfidence, o.TSVConfidence)
		setIf(&c.OCR.HeicConverter, o.HeicConverter)
		setIf(&c.OCR.ArtifactCacheDir, o.ArtifactCacheDir)
	}
	if l := fc.Log; l != nil {
		setIf(&c.Log.Level, l.Level)
		setIf(&c.Log.Format, l.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// validateAgainstSchema round-trips doc through JSON so the validator sees
// JSON types, then checks it against the embedded schema.
func validateAgainstSchema(doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(configSchema)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: config does not match schema: %v", ErrValidation, err)
	}
	return nil
}
