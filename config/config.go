package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/stability"
)

// Config es la configuración completa del bot.
type Config struct {
	Feed      FeedConfig                  `yaml:"feed"`
	Twitch    TwitchConfig                `yaml:"twitch"`
	Bet       domain.BetConfig            `yaml:"bet"`       // defaults globales
	Streamers map[string]domain.BetConfig `yaml:"streamers"` // overrides por streamer
	Stability stability.Config            `yaml:"stability"`
	Scanner   ScannerConfig               `yaml:"scanner"`
	Storage   StorageConfig               `yaml:"storage"`
	Profiler  ProfilerConfig              `yaml:"profiler"`
	Report    ReportConfig                `yaml:"report"`
	Log       LogConfig                   `yaml:"log"`
}

// FeedConfig apunta al pub/sub de eventos de predicción.
type FeedConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Channel   string `yaml:"channel"`
}

// TwitchConfig contiene el endpoint GQL y las credenciales.
// Token y ClientID vienen del entorno — nunca del YAML.
type TwitchConfig struct {
	GQLBase  string `yaml:"gql_base"`
	ClientID string `yaml:"-"`
	Token    string `yaml:"-"`
}

// ScannerConfig controla el camino redundante de polling.
type ScannerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	GraceSeconds    int  `yaml:"grace_seconds"`
}

// StorageConfig controla dónde se persisten los perfiles.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// ProfilerConfig controla la caché de perfiles.
type ProfilerConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// ReportConfig controla el informe periódico por consola.
type ReportConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if cfg.Twitch.Token == "" {
		return nil, fmt.Errorf("config.Load: TWITCH_TOKEN not set")
	}

	return &cfg, nil
}

// BetConfigFor devuelve la configuración de apuesta efectiva del streamer:
// el override por streamer sobre los defaults globales.
func (c *Config) BetConfigFor(streamerID string) domain.BetConfig {
	override, ok := c.Streamers[streamerID]
	if !ok {
		return c.Bet.WithDefaults()
	}
	return mergeBet(c.Bet, override).WithDefaults()
}

// StreamerIDs devuelve los streamers configurados, en orden estable.
func (c *Config) StreamerIDs() []string {
	ids := make([]string, 0, len(c.Streamers))
	for id := range c.Streamers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ScanInterval devuelve el intervalo del scanner como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// ScanGrace devuelve el margen antes de barrer una predicción sin resultado.
func (c *Config) ScanGrace() time.Duration {
	return time.Duration(c.Scanner.GraceSeconds) * time.Second
}

// ReportInterval devuelve el intervalo del informe por consola.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Report.IntervalSeconds) * time.Second
}

// mergeBet superpone los campos rellenados del override sobre la base.
func mergeBet(base, override domain.BetConfig) domain.BetConfig {
	out := base
	if override.Strategy != "" {
		out.Strategy = override.Strategy
	}
	if override.Percentage > 0 {
		out.Percentage = override.Percentage
	}
	if override.PercentageGap > 0 {
		out.PercentageGap = override.PercentageGap
	}
	if override.MaxPoints > 0 {
		out.MaxPoints = override.MaxPoints
	}
	if override.MinPoints > 0 {
		out.MinPoints = override.MinPoints
	}
	if override.MinimumPoints > 0 {
		out.MinimumPoints = override.MinimumPoints
	}
	if override.Stealth {
		out.Stealth = true
	}
	if override.Filter != nil {
		out.Filter = override.Filter
	}
	if override.Delay.Mode != "" {
		out.Delay = override.Delay
	}
	if override.MinVoters > 0 {
		out.MinVoters = override.MinVoters
	}
	if override.SkipIfDivided {
		out.SkipIfDivided = true
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TWITCH_TOKEN"); v != "" {
		cfg.Twitch.Token = v
	}
	if v := os.Getenv("TWITCH_CLIENT_ID"); v != "" {
		cfg.Twitch.ClientID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Feed.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Feed.RedisAddr == "" {
		cfg.Feed.RedisAddr = "localhost:6379"
	}
	if cfg.Scanner.IntervalSeconds <= 0 {
		cfg.Scanner.IntervalSeconds = 30
	}
	if cfg.Scanner.GraceSeconds <= 0 {
		cfg.Scanner.GraceSeconds = 120
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "predibot.db"
	}
	if cfg.Profiler.CacheSize <= 0 {
		cfg.Profiler.CacheSize = 256
	}
	if cfg.Report.IntervalSeconds <= 0 {
		cfg.Report.IntervalSeconds = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
