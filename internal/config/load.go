package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "ROUTEIQ_"

// Load reads the YAML file at path and applies environment overrides.
// A missing file yields a usable default config together with the open error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		var cfg Config
		cfg.Defaults()
		if envErr := applyEnv(&cfg, os.LookupEnv); envErr != nil {
			return &cfg, errors.Join(err, envErr)
		}
		return &cfg, err
	}
	defer f.Close()
	return FromReader(f)
}

func FromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup(envPrefix + "PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		cfg.HTTP.Address = ":" + v
	}
	secs := []struct {
		name string
		dst  *time.Duration
	}{
		{"READ_TIMEOUT_SEC", &cfg.HTTP.ReadTimeout},
		{"WRITE_TIMEOUT_SEC", &cfg.HTTP.WriteTimeout},
		{"IDLE_TIMEOUT_SEC", &cfg.HTTP.IdleTimeout},
	}
	for _, s := range secs {
		v, ok := lookup(envPrefix + s.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s%s: want non-negative seconds, got %q", envPrefix, s.name, v)
		}
		*s.dst = time.Duration(n) * time.Second
	}
	if v, ok := lookup(envPrefix + "DATABASE_URL"); ok && v != "" {
		cfg.Database.URL = v
		cfg.Store.Driver = StorePostgres
	}
	if v, ok := lookup(envPrefix + "TELEGRAM_BOT_TOKEN"); ok && v != "" {
		cfg.Alerts.Telegram.BotToken = v
	}
	if v, ok := lookup(envPrefix + "TELEGRAM_CHAT_ID"); ok && v != "" {
		cfg.Alerts.Telegram.ChatID = v
	}
	return nil
}
