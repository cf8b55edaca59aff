// Package config loads chartcode configuration and sets up logging
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ppiankov/chartcode/internal/model"
)

// EnvPrefix is the prefix for environment overrides (CHARTCODE_LLM_PROVIDER, ...)
const EnvPrefix = "CHARTCODE"

// DefaultPath returns $HOME/.chartcode/config.yaml, or "" when home is unknown
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".chartcode", "config.yaml")
}

// Load reads configuration from defaults, an optional config file and the
// environment. An explicit cfgFile must exist; the default location may not
func Load(cfgFile string) (*model.Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".chartcode"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, model.DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	applyKeyFallbacks(&cfg)
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d model.Config) {
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.http_proxy", d.LLM.HTTPProxy)
	v.SetDefault("llm.https_proxy", d.LLM.HTTPSProxy)
	v.SetDefault("llm.no_proxy", d.LLM.NoProxy)

	v.SetDefault("lookup.rxnorm_base_url", d.Lookup.RxNormBaseURL)
	v.SetDefault("lookup.icd10_base_url", d.Lookup.ICD10BaseURL)
	v.SetDefault("lookup.timeout", d.Lookup.Timeout)
	v.SetDefault("lookup.max_attempts", d.Lookup.MaxAttempts)
	v.SetDefault("lookup.initial_backoff_ms", d.Lookup.InitialBackoffMS)
	v.SetDefault("lookup.max_backoff_ms", d.Lookup.MaxBackoffMS)
	v.SetDefault("lookup.requests_per_second", d.Lookup.RequestsPerSecond)
	v.SetDefault("lookup.burst", d.Lookup.Burst)
	v.SetDefault("lookup.cache.enabled", d.Lookup.Cache.Enabled)
	v.SetDefault("lookup.cache.memory_ttl", d.Lookup.Cache.MemoryTTL)
	v.SetDefault("lookup.cache.disk_dir", d.Lookup.Cache.DiskDir)
	v.SetDefault("lookup.cache.disk_ttl", d.Lookup.Cache.DiskTTL)

	v.SetDefault("extraction.document_workers", d.Extraction.DocumentWorkers)
	v.SetDefault("extraction.fact_fanout", d.Extraction.FactFanout)
	v.SetDefault("extraction.fact_timeout", d.Extraction.FactTimeout)

	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.cleanup_interval", d.Session.CleanupInterval)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.seed_file", d.Store.SeedFile)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}

// applyKeyFallbacks fills the LLM key from the vendor variables when unset
func applyKeyFallbacks(cfg *model.Config) {
	if cfg.LLM.APIKey != "" {
		return
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// InitLogger builds the global zap logger. Console format uses the
// development encoder; anything else logs JSON. When cfg.File is set the
// output is teed into a size-rotated file
func InitLogger(cfg model.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapCfg.Level)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)
	return nil
}
