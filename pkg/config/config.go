package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/consts"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"gopkg.in/yaml.v3"
)

// Config represents the project configuration for blue-green deployments.
//
// Every field is optional; missing values take the defaults from pkg/consts.
// Command line flags take precedence over the file.
type Config struct {
	// Workers is the size of the concurrent DDL executor pool
	Workers int `yaml:"workers,omitempty"`

	// ProjectDir is the working directory of the Transformation Runner
	ProjectDir string `yaml:"project_dir,omitempty"`

	// Executable is the Transformation Runner binary
	Executable string `yaml:"executable,omitempty"`

	// DrainInterval is the wait before each drain check, e.g. "60s"
	DrainInterval time.Duration `yaml:"drain_interval,omitempty"`

	// QueryTag prefixes the query tag attached to the warehouse session
	QueryTag string `yaml:"query_tag,omitempty"`
}

// Defaults returns a Config holding every default value.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig parses a project configuration from the provided io.Reader.
// An empty document yields the defaults.
//
// Example:
//
//	yamlData := `
//	workers: 8
//	project_dir: analytics
//	drain_interval: 30s
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Printf("Workers: %d\n", cfg.Workers)
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to unmarshal project config")
	}

	if cfg.Workers < 0 {
		return nil, errors.Errorf("workers must not be negative, got %d", cfg.Workers)
	}

	if cfg.DrainInterval < 0 {
		return nil, errors.Errorf("drain_interval must not be negative, got %s", cfg.DrainInterval)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
//
// Example:
//
//	cfg, err := config.LoadConfigFile("bluegreen.yaml")
//	if err != nil {
//		log.Fatal("Failed to load config:", err)
//	}
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// Load is like LoadConfigFile but returns the defaults when path does not
// exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}

	return LoadConfigFile(path)
}

// Path returns the project file location: $BLUEGREEN_CONFIG when set,
// otherwise bluegreen.yaml in the working directory.
func Path() string {
	if p := os.Getenv(consts.ConfigEnv); p != "" {
		return p
	}

	return consts.DefaultConfigFile
}

// LoadEnv loads the .env file of each directory into the process
// environment. Variables that are already set are never overridden and
// missing files are ignored.
func LoadEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load %s", path)
		}
	}

	return nil
}

// ApplyTo copies the plan settings held by the project file onto plan.
func (c *Config) ApplyTo(plan *deploy.Plan) {
	plan.Workers = c.Workers
	plan.ProjectDir = c.ProjectDir
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = consts.DefaultWorkers
	}
	if c.ProjectDir == "" {
		c.ProjectDir = consts.DefaultProjectDir
	}
	if c.Executable == "" {
		c.Executable = consts.DefaultExecutable
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = consts.DefaultDrainInterval
	}
	if c.QueryTag == "" {
		c.QueryTag = consts.DefaultQueryTag
	}
}
