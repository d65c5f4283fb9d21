package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where loom looks for its config relative to the project root.
const DefaultPath = ".loom/config.yaml"

// Config holds the pipeline settings. Anything not present in the config file
// keeps its default.
type Config struct {
	// CheckerCommand is the type-checker invocation run by the compile-check
	// sandbox, executed with the overlay directory as working directory.
	CheckerCommand []string `yaml:"checker_command"`
	// CheckTimeoutSecs bounds a single sandbox run.
	CheckTimeoutSecs int `yaml:"check_timeout_secs"`
	// PackageManager is the preferred install tool; npm is the documented
	// fallback when it fails.
	PackageManager string `yaml:"package_manager"`
	// RemoteEndpoint and RemoteAPIKey configure the hosted SQL/function
	// service client.
	RemoteEndpoint string `yaml:"remote_endpoint"`
	RemoteAPIKey   string `yaml:"remote_api_key"`
	// WriteMigrations persists each executed SQL statement as a local
	// migration file.
	WriteMigrations bool   `yaml:"write_migrations"`
	MigrationsDir   string `yaml:"migrations_dir"`
	// CacheDir holds the incremental build cache and scratch overlays.
	CacheDir string `yaml:"cache_dir"`
	// EnableCompileCheck runs the advisory compile-check sandbox before the
	// orchestrator mutates anything.
	EnableCompileCheck bool `yaml:"enable_compile_check"`
	// CommitTimeoutSecs bounds the git commit call.
	CommitTimeoutSecs int `yaml:"commit_timeout_secs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CheckerCommand:     []string{"npx", "tsc", "--noEmit", "--pretty", "false", "--incremental"},
		CheckTimeoutSecs:   60,
		PackageManager:     "pnpm",
		WriteMigrations:    true,
		MigrationsDir:      "supabase/migrations",
		CacheDir:           ".loom/cache",
		EnableCompileCheck: true,
		CommitTimeoutSecs:  30,
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config back to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
