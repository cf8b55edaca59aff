package model

import "time"

// Config is the complete chartcode configuration
type Config struct {
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Lookup     LookupConfig     `yaml:"lookup" mapstructure:"lookup"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the draft generator backend
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LookupConfig configures the two code lookup services
type LookupConfig struct {
	RxNormBaseURL     string            `yaml:"rxnorm_base_url" mapstructure:"rxnorm_base_url"`
	ICD10BaseURL      string            `yaml:"icd10_base_url" mapstructure:"icd10_base_url"`
	Timeout           int               `yaml:"timeout" mapstructure:"timeout"` // seconds, per request
	MaxAttempts       int               `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS  int               `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int               `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RequestsPerSecond float64           `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int               `yaml:"burst" mapstructure:"burst"`
	Cache             LookupCacheConfig `yaml:"cache" mapstructure:"cache"`
}

// LookupCacheConfig configures caching of lookup answers
type LookupCacheConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL int    `yaml:"memory_ttl" mapstructure:"memory_ttl"`       // minutes
	DiskDir   string `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"` // empty disables the disk layer
	DiskTTL   int    `yaml:"disk_ttl" mapstructure:"disk_ttl"`           // hours
}

// ExtractionConfig bounds orchestrator concurrency
type ExtractionConfig struct {
	DocumentWorkers int `yaml:"document_workers" mapstructure:"document_workers"`
	FactFanout      int `yaml:"fact_fanout" mapstructure:"fact_fanout"`
	FactTimeout     int `yaml:"fact_timeout" mapstructure:"fact_timeout"` // seconds
}

// SessionConfig controls session eviction
type SessionConfig struct {
	TTL             int `yaml:"ttl" mapstructure:"ttl"`                           // minutes, 0 = never evict
	CleanupInterval int `yaml:"cleanup_interval" mapstructure:"cleanup_interval"` // minutes
}

// StoreConfig selects the document store
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DSN      string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	SeedFile string `yaml:"seed_file,omitempty" mapstructure:"seed_file"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures zap and the optional rotating file sink
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"` // json or console
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:  "", // Disabled by default
			Timeout:   60,
			MaxTokens: 2000,
		},
		Lookup: LookupConfig{
			RxNormBaseURL:     "https://rxnav.nlm.nih.gov/REST",
			ICD10BaseURL:      "https://clinicaltables.nlm.nih.gov/api",
			Timeout:           10,
			MaxAttempts:       3,
			InitialBackoffMS:  1000,
			MaxBackoffMS:      10000,
			RequestsPerSecond: 10,
			Burst:             5,
			Cache: LookupCacheConfig{
				Enabled:   true,
				MemoryTTL: 60,
				DiskTTL:   24,
			},
		},
		Extraction: ExtractionConfig{
			DocumentWorkers: 4,
			FactFanout:      8,
			FactTimeout:     30,
		},
		Session: SessionConfig{
			TTL:             120,
			CleanupInterval: 10,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// RequestTimeout returns the per-request lookup timeout
func (c LookupConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// InitialBackoff returns the first retry delay
func (c LookupConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay cap
func (c LookupConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

// FactTimeoutDuration returns the per-fact enrichment timeout
func (c ExtractionConfig) FactTimeoutDuration() time.Duration {
	return time.Duration(c.FactTimeout) * time.Second
}

// TTLDuration returns the session eviction TTL; 0 means sessions never expire
func (c SessionConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Minute
}

// CleanupDuration returns the eviction sweep interval
func (c SessionConfig) CleanupDuration() time.Duration {
	return time.Duration(c.CleanupInterval) * time.Minute
}
