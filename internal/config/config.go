// Package config loads and saves the per-project iter8 configuration
// stored in .iter8/config.yaml, with ITER8_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/codebase"
	"github.com/iter8/iter8-cli/internal/llm"
)

const (
	// Dir holds iter8's project-local files.
	Dir = ".iter8"
	// FileName is the config file inside Dir.
	FileName = "config.yaml"
)

// Feedback source kinds.
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config is the structure of .iter8/config.yaml
type Config struct {
	Project  ProjectConfig         `yaml:"project"`
	Backup   BackupRetentionConfig `yaml:"backup"`
	Apply    ApplyConfig           `yaml:"apply"`
	LLM      LLMConfig             `yaml:"llm"`
	Feedback FeedbackConfig        `yaml:"feedback"`
	Context  ContextConfig         `yaml:"context"`
}

// ProjectConfig names the project whose feedback is used.
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// ApplyConfig controls how plans are applied.
type ApplyConfig struct {
	// FailurePolicy is "continue" or "all-or-nothing".
	FailurePolicy string `yaml:"failure_policy"`
	// Confirm asks before writing unless --yes is given.
	Confirm bool `yaml:"confirm"`
	// WarnDirty warns about target files with uncommitted git changes.
	WarnDirty    bool `yaml:"warn_dirty"`
	PreviewLines int  `yaml:"preview_lines"`
}

// LLMConfig selects the plan generator backend.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	// Temperature is omitted to use the generator default.
	Temperature *float32 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	MaxRetries  int      `yaml:"max_retries"`
	Timeout     string   `yaml:"timeout"` // Duration string like "5m"
}

// FeedbackConfig describes where feedback comes from.
type FeedbackConfig struct {
	// Source is "sqlite" (local cache only) or "postgres" (remote, synced
	// into the cache).
	Source string `yaml:"source"`
	// CachePath is the SQLite cache, relative to the project root.
	CachePath string `yaml:"cache_path"`
	// DatabaseURL is usually supplied through DATABASE_URL instead.
	DatabaseURL string `yaml:"database_url,omitempty"`
	Table       string `yaml:"table"`
}

// ContextConfig tunes codebase context gathering.
type ContextConfig struct {
	MaxFiles     int      `yaml:"max_files"`
	MaxKeyFiles  int      `yaml:"max_key_files"`
	MaxFileBytes int      `yaml:"max_file_bytes"`
	Exclude      []string `yaml:"exclude,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backup: DefaultBackupRetentionConfig(),
		Apply: ApplyConfig{
			FailurePolicy: string(changes.PolicyContinue),
			Confirm:       true,
			WarnDirty:     true,
			PreviewLines:  changes.DefaultPreviewLines,
		},
		LLM: LLMConfig{
			Provider:   string(llm.ProviderAnthropic),
			MaxRetries: 3,
			Timeout:    "5m",
		},
		Feedback: FeedbackConfig{
			Source:    SourceSQLite,
			CachePath: filepath.Join(Dir, "feedback.db"),
			Table:     "feedback",
		},
		Context: ContextConfig{
			MaxFiles:     50,
			MaxKeyFiles:  10,
			MaxFileBytes: 4000,
		},
	}
}

// Path returns the config file location for projectRoot.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, Dir, FileName)
}

// Exists reports whether projectRoot has a config file.
func Exists(projectRoot string) bool {
	_, err := os.Stat(Path(projectRoot))
	return err == nil
}

// Load reads .iter8/config.yaml under projectRoot, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(projectRoot))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Unmarshal over the defaults so omitted keys keep them.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", Path(projectRoot), err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the config to .iter8/config.yaml under projectRoot.
func (c *Config) Save(projectRoot string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, Dir), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# iter8 project configuration\n# Environment variables (ITER8_*) override these values.\n\n"
	if err := os.WriteFile(Path(projectRoot), append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment
//
// Environment variables:
//   - ITER8_PROJECT: Project name
//   - ITER8_BACKUP_DIR, ITER8_BACKUP_CEILING, ITER8_BACKUP_EVICT_PERCENT: Backup retention
//   - ITER8_FAILURE_POLICY: continue or all-or-nothing
//   - ITER8_CONFIRM: Ask before applying (bool)
//   - ITER8_LLM_PROVIDER, ITER8_LLM_MODEL, ITER8_LLM_BASE_URL: Generator backend
//   - ITER8_FEEDBACK_SOURCE: sqlite or postgres
//   - ITER8_DATABASE_URL, then DATABASE_URL: Remote feedback database
func (c *Config) ApplyEnv() error {
	if err := parseEnvString("ITER8_PROJECT", &c.Project.Name); err != nil {
		return err
	}
	if err := c.Backup.applyEnv(); err != nil {
		return err
	}
	if err := parseEnvString("ITER8_FAILURE_POLICY", &c.Apply.FailurePolicy); err != nil {
		return err
	}
	if err := parseEnvBool("ITER8_CONFIRM", &c.Apply.Confirm); err != nil {
		return err
	}
	if err := parseEnvString("ITER8_LLM_PROVIDER", &c.LLM.Provider); err != nil {
		return err
	}
	if err := parseEnvString("ITER8_LLM_MODEL", &c.LLM.Model); err != nil {
		return err
	}
	if err := parseEnvString("ITER8_LLM_BASE_URL", &c.LLM.BaseURL); err != nil {
		return err
	}
	if err := parseEnvString("ITER8_FEEDBACK_SOURCE", &c.Feedback.Source); err != nil {
		return err
	}
	if err := parseEnvString("ITER8_DATABASE_URL", &c.Feedback.DatabaseURL); err != nil {
		return err
	}
	if c.Feedback.DatabaseURL == "" {
		return parseEnvString("DATABASE_URL", &c.Feedback.DatabaseURL)
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	if !changes.FailurePolicy(c.Apply.FailurePolicy).IsValid() {
		return fmt.Errorf("apply.failure_policy must be %q or %q (got %q)",
			changes.PolicyContinue, changes.PolicyAllOrNothing, c.Apply.FailurePolicy)
	}
	if c.Apply.PreviewLines < 0 {
		return fmt.Errorf("apply.preview_lines cannot be negative (got %d)", c.Apply.PreviewLines)
	}

	if !llm.Provider(c.LLM.Provider).IsValid() {
		return fmt.Errorf("llm.provider must be anthropic, openai or ollama (got %q)", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 10 {
		return fmt.Errorf("llm.max_retries must be between 0 and 10 (got %d)", c.LLM.MaxRetries)
	}
	if _, err := c.LLM.timeout(); err != nil {
		return err
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("llm.temperature must be between 0 and 2 (got %g)", *t)
	}

	if c.Feedback.Source != SourceSQLite && c.Feedback.Source != SourcePostgres {
		return fmt.Errorf("feedback.source must be %q or %q (got %q)", SourceSQLite, SourcePostgres, c.Feedback.Source)
	}
	if strings.TrimSpace(c.Feedback.CachePath) == "" {
		return fmt.Errorf("feedback.cache_path cannot be empty")
	}

	if c.Context.MaxFiles < 0 || c.Context.MaxKeyFiles < 0 || c.Context.MaxFileBytes < 0 {
		return fmt.Errorf("context limits cannot be negative")
	}
	return nil
}

func (l LLMConfig) timeout() (time.Duration, error) {
	if l.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("llm.timeout: invalid duration %q: %w", l.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("llm.timeout cannot be negative (got %s)", l.Timeout)
	}
	return d, nil
}

// ServiceConfig builds the changes.Service configuration for projectRoot.
func (c *Config) ServiceConfig(projectRoot string) changes.Config {
	return changes.Config{
		Root:          projectRoot,
		BackupDir:     c.Backup.Dir,
		Retention:     c.Backup.Policy(),
		FailurePolicy: changes.FailurePolicy(c.Apply.FailurePolicy),
	}
}

// ClientConfig builds the llm client configuration.
func (c *Config) ClientConfig() llm.Config {
	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = c.LLM.MaxRetries
	if d, err := c.LLM.timeout(); err == nil && d > 0 {
		retry.Timeout = d
	}
	return llm.Config{
		Provider: llm.Provider(c.LLM.Provider),
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
		Retry:    retry,
	}
}

// GenerationParams returns the generator parameters from the llm section.
func (c *Config) GenerationParams() llm.Params {
	var p llm.Params
	p.Temperature = c.LLM.Temperature
	if c.LLM.MaxTokens > 0 {
		n := c.LLM.MaxTokens
		p.MaxTokens = &n
	}
	return p
}

// GathererOptions returns the codebase context options. The backup
// directory is always excluded.
func (c *Config) GathererOptions() codebase.Options {
	exclude := append([]string{}, c.Context.Exclude...)
	exclude = append(exclude, strings.TrimSuffix(filepath.ToSlash(c.Backup.Dir), "/")+"/")
	return codebase.Options{
		Exclude:      exclude,
		MaxFiles:     c.Context.MaxFiles,
		MaxKeyFiles:  c.Context.MaxKeyFiles,
		MaxFileBytes: c.Context.MaxFileBytes,
	}
}

// CachePath returns the absolute SQLite cache path for projectRoot.
func (c *Config) CachePath(projectRoot string) string {
	if filepath.IsAbs(c.Feedback.CachePath) {
		return c.Feedback.CachePath
	}
	return filepath.Join(projectRoot, c.Feedback.CachePath)
}
