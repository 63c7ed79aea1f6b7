package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feeds soportados para obtener el book.
const (
	FeedREST = "rest"
	FeedWS   = "ws"
)

// Modos de operación del bot.
const (
	ModeDirectional = "directional"
	ModeQuote       = "quote"
)

// Config es la configuración completa del bot.
type Config struct {
	Market   MarketConfig   `yaml:"market"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Bot      BotConfig      `yaml:"bot"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// MarketConfig identifica el mercado y el tamaño que se quiere operar.
type MarketConfig struct {
	TokenID     string  `yaml:"token_id"`
	DesiredSize float64 `yaml:"desired_size"` // shares
	Feed        string  `yaml:"feed"`         // rest | ws
	QuoteBudget float64 `yaml:"quote_budget"` // USDC repartidos entre los dos lados en modo quote
	SpreadSlip  float64 `yaml:"spread_slip"`  // se suma al último precio al dimensionar en modo quote
}

// AnalysisConfig son los parámetros del motor, en unidades de la API.
type AnalysisConfig struct {
	ImbalanceThreshold     float64 `yaml:"imbalance_threshold"`     // ratio > 1
	VolumeThreshold        float64 `yaml:"volume_threshold"`        // shares
	PriceLevels            uint    `yaml:"price_levels"`            // N niveles por lado
	SpreadMultiplier       float64 `yaml:"spread_multiplier"`       // spread máximo operable = min_spread × esto
	MinSpread              float64 `yaml:"min_spread"`              // suelo del spread efectivo
	ConcentrationThreshold float64 `yaml:"concentration_threshold"` // fracción en el mejor nivel que se considera book fino
}

// BotConfig controla el loop.
type BotConfig struct {
	IntervalMS            int  `yaml:"interval_ms"`
	HeartbeatSeconds      int  `yaml:"heartbeat_seconds"`
	ErrorBackoffSeconds   int  `yaml:"error_backoff_seconds"`
	MaxSnapshotAgeSeconds int  `yaml:"max_snapshot_age_seconds"`
	LatencyBudgetUS       int  `yaml:"latency_budget_us"`
	Confirmations         int  `yaml:"confirmations"` // señales Favorable seguidas antes de operar
	WindowSize            int    `yaml:"window_size"`
	DryRun                bool   `yaml:"dry_run"`
	Mode                  string `yaml:"mode"` // directional | quote
}

// APIConfig contiene los endpoints de Polymarket.
type APIConfig struct {
	CLOBBase string `yaml:"clob_base"`
	WSURL    string `yaml:"ws_url"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// TelegramConfig activa las alertas por Telegram si ambos campos están presentes.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// Enabled indica si hay credenciales suficientes.
func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != "" }

// RedisConfig activa la publicación de señales si Addr no está vacío.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default devuelve la configuración base sobre la que se aplica el YAML.
func Default() Config {
	a := domain.DefaultAnalysisConfig()
	return Config{
		Market: MarketConfig{Feed: FeedREST, SpreadSlip: 0.01},
		Analysis: AnalysisConfig{
			ImbalanceThreshold:     a.ImbalanceThreshold,
			VolumeThreshold:        a.VolumeThreshold,
			PriceLevels:            a.PriceLevels,
			SpreadMultiplier:       a.SpreadMultiplier,
			MinSpread:              a.MinSpread.InexactFloat64(),
			ConcentrationThreshold: a.ConcentrationThreshold,
		},
		Bot: BotConfig{Confirmations: 1},
	}
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los campos ausentes del YAML conservan el valor de Default; las variables de
// entorno sobreescriben al YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// AnalysisConfig convierte la sección analysis al tipo del dominio.
func (c *Config) AnalysisConfig() domain.AnalysisConfig {
	a := c.Analysis
	return domain.AnalysisConfig{
		ImbalanceThreshold:     a.ImbalanceThreshold,
		VolumeThreshold:        a.VolumeThreshold,
		PriceLevels:            a.PriceLevels,
		SpreadMultiplier:       a.SpreadMultiplier,
		MinSpread:              decimal.NewFromFloat(a.MinSpread),
		ConcentrationThreshold: a.ConcentrationThreshold,
	}
}

// DesiredSize devuelve el tamaño deseado como decimal.
func (c *Config) DesiredSize() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.DesiredSize)
}

// Interval devuelve el intervalo entre evaluaciones.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Bot.IntervalMS) * time.Millisecond
}

// HeartbeatInterval devuelve cada cuánto se manda el heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Bot.HeartbeatSeconds) * time.Second
}

// ErrorBackoff devuelve la espera tras un error del loop.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Bot.ErrorBackoffSeconds) * time.Second
}

// MaxSnapshotAge devuelve la edad máxima aceptada de un snapshot.
func (c *Config) MaxSnapshotAge() time.Duration {
	return time.Duration(c.Bot.MaxSnapshotAgeSeconds) * time.Second
}

// LatencyBudget devuelve el presupuesto de latencia por evaluación.
func (c *Config) LatencyBudget() time.Duration {
	return time.Duration(c.Bot.LatencyBudgetUS) * time.Microsecond
}

// QuoteBudget devuelve el presupuesto del modo quote como decimal.
func (c *Config) QuoteBudget() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.QuoteBudget)
}

// SpreadSlip devuelve el slip de dimensionado como decimal.
func (c *Config) SpreadSlip() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.SpreadSlip)
}

// Validate comprueba la configuración completa y devuelve todos los problemas juntos.
func (c *Config) Validate() error {
	var errs []error
	if c.Market.TokenID == "" {
		errs = append(errs, errors.New("market.token_id is required"))
	}
	if c.Market.DesiredSize <= 0 {
		errs = append(errs, fmt.Errorf("market.desired_size must be > 0, got %v", c.Market.DesiredSize))
	}
	if c.Market.Feed != FeedREST && c.Market.Feed != FeedWS {
		errs = append(errs, fmt.Errorf("market.feed must be %q or %q, got %q", FeedREST, FeedWS, c.Market.Feed))
	}
	if err := c.AnalysisConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Bot.Confirmations < 1 {
		errs = append(errs, fmt.Errorf("bot.confirmations must be >= 1, got %d", c.Bot.Confirmations))
	}
	if c.Bot.WindowSize < c.Bot.Confirmations {
		errs = append(errs, fmt.Errorf("bot.window_size (%d) must be >= bot.confirmations (%d)",
			c.Bot.WindowSize, c.Bot.Confirmations))
	}
	switch c.Bot.Mode {
	case ModeDirectional:
	case ModeQuote:
		if c.Market.QuoteBudget <= 0 {
			errs = append(errs, fmt.Errorf("market.quote_budget must be > 0 in quote mode, got %v", c.Market.QuoteBudget))
		}
	default:
		errs = append(errs, fmt.Errorf("bot.mode must be %q or %q, got %q", ModeDirectional, ModeQuote, c.Bot.Mode))
	}
	if c.Market.SpreadSlip < 0 {
		errs = append(errs, fmt.Errorf("market.spread_slip must be >= 0, got %v", c.Market.SpreadSlip))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug|info|warn|error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text|json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOKEN_ID"); v != "" {
		cfg.Market.TokenID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
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
	if cfg.Market.Feed == "" {
		cfg.Market.Feed = FeedREST
	}
	if cfg.Bot.IntervalMS <= 0 {
		cfg.Bot.IntervalMS = 1000
	}
	if cfg.Bot.HeartbeatSeconds <= 0 {
		cfg.Bot.HeartbeatSeconds = 60
	}
	if cfg.Bot.ErrorBackoffSeconds <= 0 {
		cfg.Bot.ErrorBackoffSeconds = 10
	}
	if cfg.Bot.MaxSnapshotAgeSeconds <= 0 {
		cfg.Bot.MaxSnapshotAgeSeconds = 5
	}
	if cfg.Bot.LatencyBudgetUS <= 0 {
		cfg.Bot.LatencyBudgetUS = 2000 // 2ms
	}
	if cfg.Bot.WindowSize <= 0 {
		cfg.Bot.WindowSize = 16
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = ModeDirectional
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.WSURL == "" {
		cfg.API.WSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyslip.db"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "polyslip:signals"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
