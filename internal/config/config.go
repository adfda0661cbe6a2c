package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Models     ModelsConfig     `json:"models" yaml:"models"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Feed       FeedConfig       `json:"feed" yaml:"feed"`
	API        APIConfig        `json:"api" yaml:"api"`
}

type SimulationConfig struct {
	TickInterval  time.Duration `json:"tick_interval" yaml:"tick_interval"`
	HoneypotIP    string        `json:"honeypot_ip" yaml:"honeypot_ip"`
	InternalHosts int           `json:"internal_hosts" yaml:"internal_hosts"`
}

type ModelsConfig struct {
	AnomalyPath    string `json:"anomaly_path" yaml:"anomaly_path"`
	ClassifierPath string `json:"classifier_path" yaml:"classifier_path"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type FeedConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type APIConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	LogLimit int    `json:"log_limit" yaml:"log_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Simulation: SimulationConfig{
			TickInterval:  3 * time.Second,
			HoneypotIP:    "10.0.0.100",
			InternalHosts: 19,
		},
		Models: ModelsConfig{
			AnomalyPath:    "models/anomaly.gob",
			ClassifierPath: "models/classifier.gob",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "file:socsim.db?_pragma=busy_timeout(5000)",
		},
		Feed: FeedConfig{Enabled: false},
		API:  APIConfig{Enabled: true, Addr: ":8080", LogLimit: 100},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Simulation.TickInterval <= 0 {
		cfg.Simulation.TickInterval = 3 * time.Second
	}
	if cfg.Simulation.HoneypotIP == "" {
		cfg.Simulation.HoneypotIP = "10.0.0.100"
	}
	if cfg.Simulation.InternalHosts <= 0 {
		cfg.Simulation.InternalHosts = 19
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.API.LogLimit <= 0 {
		cfg.API.LogLimit = 100
	}
}

func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", cfg.Storage.Driver)
	}
	if cfg.Simulation.TickInterval <= 0 {
		return errors.New("simulation.tick_interval must be > 0")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Feed.Enabled {
		if len(cfg.Feed.Brokers) == 0 || cfg.Feed.Topic == "" {
			return errors.New("feed requires brokers and topic when enabled")
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file, for tests
// and for running with built-in defaults.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
