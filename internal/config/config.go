package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "calcdesk.yaml"

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HooksConfig holds optional JavaScript functions applied to successful results.
type HooksConfig struct {
	Evaluate string `yaml:"evaluate"`
	Matrix   string `yaml:"matrix"`
}

// Config is the top-level configuration struct.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Ops        []string      `yaml:"ops"`
	HistoryDir string        `yaml:"history_dir"`
	// HistoryLabel is an optional session name used in saved history files.
	HistoryLabel string        `yaml:"history_label"`
	BatchLimit   int           `yaml:"batch_limit"`
	Hooks        HooksConfig   `yaml:"hooks"`
	Logging      LoggingConfig `yaml:"logging"`

	// Args holds the positional arguments left after flag parsing.
	Args []string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		BaseURL:    "http://127.0.0.1:5000",
		Timeout:    25 * time.Second,
		Ops:        []string{"add", "subtract", "multiply", "transpose", "determinant", "inverse"},
		HistoryDir: ".",
		BatchLimit: 4,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "calcdesk.log",
		},
	}
}

// Load builds the configuration for one subcommand. Precedence is
// flags > environment > config file > defaults. A missing config file is not
// an error unless it was named explicitly.
func Load(name string, args []string, stderr io.Writer) (*Config, error) {
	return LoadWith(name, args, stderr, nil)
}

// LoadWith is Load with extra subcommand flags registered by extra.
func LoadWith(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	if extra != nil {
		extra(fs)
	}
	configPath := fs.String("config", getEnv("CALCDESK_CONFIG", DefaultPath), "path to the YAML config file")
	baseURL := fs.String("base-url", "", "calculator service base URL")
	timeout := fs.Duration("timeout", 0, "request timeout")
	username := fs.String("username", "", "login username")
	historyDir := fs.String("history-dir", "", "directory for saved history")
	historyLabel := fs.String("history-label", "", "session name used in saved history file names")
	batchLimit := fs.Int("batch-limit", 0, "max concurrent requests in eval mode")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	logOutput := fs.String("log-output", "", "log output: stdout, stderr or a file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	if os.Getenv("CALCDESK_CONFIG") != "" {
		explicit = true
	}
	if err := cfg.loadFile(*configPath, explicit); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *username != "" {
		cfg.Username = *username
	}
	if *historyDir != "" {
		cfg.HistoryDir = *historyDir
	}
	if *historyLabel != "" {
		cfg.HistoryLabel = *historyLabel
	}
	if *batchLimit > 0 {
		cfg.BatchLimit = *batchLimit
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logOutput != "" {
		cfg.Logging.Output = *logOutput
	}
	cfg.Args = fs.Args()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("could not read config file at %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config file at %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("CALCDESK_BASE_URL", c.BaseURL)
	c.Username = getEnv("CALCDESK_USERNAME", c.Username)
	c.Password = getEnv("CALCDESK_PASSWORD", c.Password)
	c.Timeout = getEnvAsDuration("CALCDESK_TIMEOUT", c.Timeout)
	c.Logging.Level = getEnv("CALCDESK_LOG_LEVEL", c.Logging.Level)
	c.Logging.Output = getEnv("CALCDESK_LOG_OUTPUT", c.Logging.Output)
	c.BatchLimit = getEnvAsInt("CALCDESK_BATCH_LIMIT", c.BatchLimit)
	c.HistoryLabel = getEnv("CALCDESK_HISTORY_LABEL", c.HistoryLabel)
}

// Validate checks the fields every subcommand depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.BatchLimit <= 0 {
		return fmt.Errorf("batch_limit must be positive, got %d", c.BatchLimit)
	}

	ops := c.Ops[:0]
	for _, op := range c.Ops {
		if op = strings.TrimSpace(op); op != "" {
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 {
		return errors.New("ops must name at least one matrix operation")
	}
	c.Ops = ops
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
