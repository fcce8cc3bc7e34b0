package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"alphasmith/internal/domain"
)

// Config is the full pipeline configuration. It is loaded once in main and
// passed explicitly into constructors; nothing reads it through package
// state. YAML values override struct defaults, environment variables
// override YAML.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`

	// Watchlist is the set of symbols trained and predicted by default.
	Watchlist []string `yaml:"watchlist"`
	Benchmark string   `yaml:"benchmark" default:"SPY"`

	Data      DataConfig      `yaml:"data"`
	Features  FeaturesConfig  `yaml:"features"`
	Training  TrainingConfig  `yaml:"training"`
	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// DataConfig controls the market-data provider and the fetch pool.
type DataConfig struct {
	BaseURL        string        `yaml:"base_url" default:"http://localhost:8127"`
	APIKey         string        `yaml:"api_key"`
	HistoryDays    int           `yaml:"history_days" default:"900" validate:"min=1"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"4"`
	RateLimitBurst int           `yaml:"rate_limit_burst" default:"8"`
	FetchWorkers   int           `yaml:"fetch_workers" default:"6" validate:"min=1,max=16"`
	CacheTTL       time.Duration `yaml:"cache_ttl" default:"12h"`
}

type FeaturesConfig struct {
	// MinHistoryDays is the degraded-mode boundary: shorter histories get a
	// raw-columns-only table instead of derived features.
	MinHistoryDays int  `yaml:"min_history_days" default:"200" validate:"min=1"`
	Anomaly        bool `yaml:"anomaly"`
	AnomalyWarmup  int  `yaml:"anomaly_warmup" default:"252" validate:"min=20"`
	AnomalyRefit   int  `yaml:"anomaly_refit" default:"63" validate:"min=1"`
}

type TrainingConfig struct {
	Horizons     []int  `yaml:"horizons" validate:"dive,min=1,max=120"`
	Folds        int    `yaml:"folds" default:"5" validate:"min=2,max=10"`
	MinSamples   int    `yaml:"min_samples" default:"100" validate:"min=10"`
	ArtifactsDir string `yaml:"artifacts_dir" default:"artifacts"`

	// Policies overrides the built-in boosting policy per registry key
	// (e.g. "deepboost_20d"). Zero fields fall through to the defaults.
	Policies map[string]PolicyConfig `yaml:"policies"`
}

// PolicyConfig is a partial override of one model's boosting parameters.
type PolicyConfig struct {
	Rounds       int     `yaml:"rounds"`
	LearningRate float64 `yaml:"learning_rate"`
	MaxDepth     int     `yaml:"max_depth"`
}

type EnsembleConfig struct {
	Mode string `yaml:"mode" default:"weighted" validate:"oneof=average weighted voting"`

	// Confidence tier boundaries on the fused probability's distance from
	// either extreme.
	HighThreshold   float64 `yaml:"high_threshold" default:"0.60" validate:"gt=0.5,lt=1"`
	MediumThreshold float64 `yaml:"medium_threshold" default:"0.50" validate:"gte=0.5,lt=1"`

	// Direction thresholds for mapping fused probability to a signal.
	LongThreshold  float64 `yaml:"long_threshold" default:"0.55" validate:"gt=0.5,lt=1"`
	ShortThreshold float64 `yaml:"short_threshold" default:"0.45" validate:"gt=0,lt=0.5"`
}

type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital" default:"10000" validate:"gt=0"`
	SlippagePct    float64 `yaml:"slippage_pct" default:"0.0005" validate:"gte=0,lt=0.1"`
	Commission     float64 `yaml:"commission" default:"1" validate:"gte=0"`

	// Threshold splits the probability series: above it the simulator buys,
	// at or below it the simulator sells.
	Threshold float64 `yaml:"threshold" default:"0.55" validate:"gt=0,lt=1"`
	Days      int     `yaml:"days" default:"252" validate:"min=10"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SentimentConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OpenAIModel string `yaml:"openai_model" default:"gpt-4o-mini"`
	APIKey      string `yaml:"api_key"`
}

type JobsConfig struct {
	RefreshEvery time.Duration `yaml:"refresh_every" default:"15m"`
	RefreshBatch int           `yaml:"refresh_batch" default:"4" validate:"min=1"`
	PredictEvery time.Duration `yaml:"predict_every" default:"1h"`
	ResolveEvery time.Duration `yaml:"resolve_every" default:"30m"`
	TrainHourUTC int           `yaml:"train_hour_utc" default:"2" validate:"min=0,max=23"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" default:":9090"`
	Path string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), applies struct defaults to anything left unset, layers
// environment overrides on top, and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if len(c.Watchlist) == 0 {
		c.Watchlist = append([]string(nil), domain.DefaultWatchlist...)
	}
	if len(c.Training.Horizons) == 0 {
		c.Training.Horizons = append([]int(nil), domain.DefaultHorizons...)
	}

	c.applyEnv()

	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.Postgres.URL = v
		c.Postgres.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("MARKET_DATA_URL")); v != "" {
		c.Data.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MARKET_DATA_API_KEY")); v != "" {
		c.Data.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		c.Sentiment.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		c.Sentiment.OpenAIModel = v
	}
	if v := strings.TrimSpace(os.Getenv("WATCHLIST")); v != "" {
		parts := strings.Split(v, ",")
		symbols := parts[:0]
		for _, p := range parts {
			if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) > 0 {
			c.Watchlist = symbols
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACTS_DIR")); v != "" {
		c.Training.ArtifactsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}
