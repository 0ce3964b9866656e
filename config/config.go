package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Scoring ScoringConfig `yaml:"scoring"`
	Loop    LoopConfig    `yaml:"loop"`
	Staking StakingConfig `yaml:"staking"`
	Trading TradingConfig `yaml:"trading"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ScoringConfig apunta al scoring service que produce los candidatos.
type ScoringConfig struct {
	BaseURL                string  `yaml:"base_url"`
	APIKey                 string  `yaml:"-"` // solo por env: BOT_API_KEY
	WindowMinutes          int     `yaml:"window_minutes"`
	MinGrade               string  `yaml:"min_grade"`
	RequireMicrostructure  bool    `yaml:"require_microstructure"`
	MarketQualityThreshold float64 `yaml:"market_quality_threshold"`
}

// LoopConfig controla el scheduling del poll loop.
type LoopConfig struct {
	PollSeconds       int     `yaml:"poll_seconds"`
	MaxBets           int     `yaml:"max_bets"`
	JitterRatio       float64 `yaml:"jitter_ratio"`
	BackoffBase       float64 `yaml:"backoff_base_seconds"`
	BackoffMax        float64 `yaml:"backoff_max_seconds"`
	MaxCallsPerHour   int     `yaml:"max_calls_per_hour"`
	RunWindowStart    string  `yaml:"run_window_start"` // "HH:MM", vacío desactiva
	RunWindowEnd      string  `yaml:"run_window_end"`
	RunWindowTZ       string  `yaml:"run_window_tz"`
	PlacedTTLSeconds  int     `yaml:"placed_ttl_seconds"`
	EventGraceSeconds int     `yaml:"placed_event_grace_seconds"`
}

// StakingConfig son los parámetros de sizing fractional-Kelly.
type StakingConfig struct {
	PaperBankroll   float64 `yaml:"paper_bankroll"`
	KellyFraction   float64 `yaml:"kelly_fraction"`
	MaxStake        float64 `yaml:"max_stake"`
	MinStake        float64 `yaml:"min_stake"`
	FixedStake      float64 `yaml:"fixed_stake"`
	LowROIThreshold float64 `yaml:"low_roi_threshold"`
}

// TradingConfig configura la ejecución contra Polymarket.
type TradingConfig struct {
	DryRun               bool   `yaml:"dry_run"`
	CLOBHost             string `yaml:"clob_host"`
	GammaHost            string `yaml:"gamma_host"`
	ChainID              int64  `yaml:"chain_id"`
	SignatureType        int    `yaml:"signature_type"` // 0 EOA, 1 proxy, 2 safe
	Funder               string `yaml:"funder"`
	StopOnBlock          bool   `yaml:"stop_on_block"`
	PreflightConditionID string `yaml:"preflight_condition_id"`

	// Solo por env: POLY_PRIVATE_KEY, POLY_API_KEY/SECRET/PASSPHRASE
	PrivateKey    string `yaml:"-"`
	APIKey        string `yaml:"-"`
	APISecret     string `yaml:"-"`
	APIPassphrase string `yaml:"-"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	StatePath    string `yaml:"state_path"`
	TradeLogPath string `yaml:"trade_log_path"`
	HistoryDSN   string `yaml:"history_dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Los secretos llegan solo por variables de entorno. Un YAML
// ausente no es error: quedan los defaults más lo que diga el entorno.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	// Paper mode salvo que el YAML o el entorno digan lo contrario
	cfg := Config{Trading: TradingConfig{DryRun: true}}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// sin archivo: defaults + env
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo de poll como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Loop.PollSeconds) * time.Second
}

// CandidateLimit devuelve cuántos candidatos pedir al feed por ciclo.
// Se pide 3x sobre max_bets: si los mejores rankeados ya están en el
// ledger, el ciclo todavía tiene pool para colocar apuestas nuevas.
func (c *Config) CandidateLimit() int {
	return c.Loop.MaxBets * 3
}

// PlacedTTL devuelve el cool-down plano del ledger.
func (c *Config) PlacedTTL() time.Duration {
	return time.Duration(c.Loop.PlacedTTLSeconds) * time.Second
}

// EventGrace devuelve la gracia post-evento del ledger.
func (c *Config) EventGrace() time.Duration {
	return time.Duration(c.Loop.EventGraceSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están
// presentes. Los secretos solo existen aquí.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOT_BASE_URL"); v != "" {
		cfg.Scoring.BaseURL = v
	}
	if v := os.Getenv("BOT_API_KEY"); v != "" {
		cfg.Scoring.APIKey = v
	}
	if v := os.Getenv("BOT_DRY_RUN"); v != "" {
		cfg.Trading.DryRun = v != "false"
	}
	if v := os.Getenv("POLY_PRIVATE_KEY"); v != "" {
		cfg.Trading.PrivateKey = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.Trading.APIKey = v
	}
	if v := os.Getenv("POLY_API_SECRET"); v != "" {
		cfg.Trading.APISecret = v
	}
	if v := os.Getenv("POLY_API_PASSPHRASE"); v != "" {
		cfg.Trading.APIPassphrase = v
	}
	if v := os.Getenv("POLY_FUNDER"); v != "" {
		cfg.Trading.Funder = v
	}
	if v := os.Getenv("POLY_SIGNATURE_TYPE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.SignatureType = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los defaults numéricos replican la operación histórica del bot.
func setDefaults(cfg *Config) {
	if cfg.Scoring.WindowMinutes <= 0 {
		cfg.Scoring.WindowMinutes = 5
	}
	if cfg.Scoring.MinGrade == "" {
		cfg.Scoring.MinGrade = "A"
	}
	if cfg.Scoring.MarketQualityThreshold <= 0 {
		cfg.Scoring.MarketQualityThreshold = 0.72
	}
	if cfg.Loop.PollSeconds <= 0 {
		cfg.Loop.PollSeconds = 20
	}
	if cfg.Loop.MaxBets <= 0 {
		cfg.Loop.MaxBets = 5
	}
	if cfg.Loop.JitterRatio == 0 {
		cfg.Loop.JitterRatio = 0.2
	}
	if cfg.Loop.BackoffBase == 0 {
		cfg.Loop.BackoffBase = 2
	}
	if cfg.Loop.BackoffMax <= 0 {
		cfg.Loop.BackoffMax = 120
	}
	if cfg.Loop.MaxCallsPerHour == 0 {
		cfg.Loop.MaxCallsPerHour = 120
	}
	if cfg.Loop.RunWindowTZ == "" {
		cfg.Loop.RunWindowTZ = "America/New_York"
	}
	if cfg.Loop.PlacedTTLSeconds <= 0 {
		cfg.Loop.PlacedTTLSeconds = 21600 // 6h
	}
	if cfg.Loop.EventGraceSeconds <= 0 {
		cfg.Loop.EventGraceSeconds = 1800 // 30min
	}
	if cfg.Staking.PaperBankroll <= 0 {
		cfg.Staking.PaperBankroll = 1000
	}
	if cfg.Staking.KellyFraction <= 0 {
		cfg.Staking.KellyFraction = 0.25
	}
	if cfg.Staking.MaxStake <= 0 {
		cfg.Staking.MaxStake = 50
	}
	if cfg.Staking.MinStake <= 0 {
		cfg.Staking.MinStake = 1
	}
	if cfg.Staking.LowROIThreshold <= 0 {
		cfg.Staking.LowROIThreshold = 0.72
	}
	if cfg.Trading.CLOBHost == "" {
		cfg.Trading.CLOBHost = "https://clob.polymarket.com"
	}
	if cfg.Trading.GammaHost == "" {
		cfg.Trading.GammaHost = "https://gamma-api.polymarket.com"
	}
	if cfg.Trading.ChainID <= 0 {
		cfg.Trading.ChainID = 137 // Polygon
	}
	if cfg.Storage.StatePath == "" {
		cfg.Storage.StatePath = "data/state.json"
	}
	if cfg.Storage.TradeLogPath == "" {
		cfg.Storage.TradeLogPath = "data/trades.jsonl"
	}
	if cfg.Storage.HistoryDSN == "" {
		cfg.Storage.HistoryDSN = "data/history.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate falla en startup, antes de cualquier iteración del loop, si
// faltan credenciales requeridas.
func validate(cfg *Config) error {
	if cfg.Scoring.BaseURL == "" || cfg.Scoring.APIKey == "" {
		return errors.New("config: BOT_BASE_URL and BOT_API_KEY are required")
	}
	if !cfg.Trading.DryRun {
		if cfg.Trading.PrivateKey == "" {
			return errors.New("config: POLY_PRIVATE_KEY is required for live trading")
		}
		if (cfg.Trading.SignatureType == 1 || cfg.Trading.SignatureType == 2) && cfg.Trading.Funder == "" {
			return errors.New("config: POLY_FUNDER is required for proxy signature types")
		}
	}
	return nil
}
