package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	APIBase        string        `mapstructure:"api_base"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MessageLimit   int           `mapstructure:"message_limit"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	StunURL        string        `mapstructure:"stun_url"`
	Secret         string        `mapstructure:"secret"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("api_base", "http://localhost:8000")
	v.SetDefault("poll_interval", "1500ms")
	v.SetDefault("message_limit", 60)
	v.SetDefault("connect_timeout", "15s")
	v.SetDefault("stun_url", "stun:stun.l.google.com:19302")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | API: %s\n", cfg.Mode, cfg.Port, cfg.APIBase)
	return &cfg, nil
}
