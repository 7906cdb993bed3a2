// Package config loads settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/bhasha/internal/generator"
	"github.com/valpere/bhasha/internal/translator"
)

type Config struct {
	Server     ServerConfig             `mapstructure:"server"`
	LLM        generator.ServiceConfig  `mapstructure:"llm"`
	Translator translator.ServiceConfig `mapstructure:"translator"`
	Store      StoreConfig              `mapstructure:"store"`
	Log        LogConfig                `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout"`
}

type StoreConfig struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
	Memory  bool   `mapstructure:"memory"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.attempt_timeout", time.Duration(0))

	v.SetDefault("llm.backend", "hf")
	v.SetDefault("llm.model", generator.DefaultModel)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.device_auto", false)
	v.SetDefault("llm.strip_markdown", true)

	v.SetDefault("translator.backend", "hf")
	v.SetDefault("translator.base_url", "")
	v.SetDefault("translator.api_key", "")
	v.SetDefault("translator.timeout", 120*time.Second)
	v.SetDefault("translator.max_length", translator.DefaultMaxLength)
	v.SetDefault("translator.chunk_chars", 1000)
	v.SetDefault("translator.lambda_prefix", translator.DefaultLambdaPrefix)
	v.SetDefault("translator.region", "")
	v.SetDefault("translator.credentials", "")
	v.SetDefault("translator.project_id", "")
	v.SetDefault("translator.validate", false)
	v.SetDefault("translator.serialize", false)

	v.SetDefault("store.path", "./data/bhasha.db")
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.memory", false)

	v.SetDefault("log.debug", false)
}

// New returns a viper instance with defaults and environment bindings.
// Every key can be set as BHASHA_<SECTION>_<KEY>; LLM_MODEL and DEVICE_AUTO
// are also read without the prefix.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("BHASHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.model", "BHASHA_LLM_MODEL", "LLM_MODEL")
	_ = v.BindEnv("llm.device_auto", "BHASHA_LLM_DEVICE_AUTO", "DEVICE_AUTO")
	_ = v.BindEnv("llm.api_key", "BHASHA_LLM_API_KEY", "HF_TOKEN")
	_ = v.BindEnv("translator.api_key", "BHASHA_TRANSLATOR_API_KEY", "HF_TOKEN")
	return v
}

// Load reads path if given, otherwise looks for bhasha.yaml in the working
// directory and ~/.config/bhasha. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bhasha")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bhasha")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// DEVICE_AUTO accepts shell-style truthy values.
	v.Set("llm.device_auto", Truthy(v.GetString("llm.device_auto")))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	}
	return false
}
