// Package config assembles the service configuration: built-in defaults,
// then an optional YAML file, then a .env file, then the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"crewroute/internal/cp"
	"crewroute/internal/vrp"
)

var ErrInvalid = errors.New("config: invalid")

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Solver struct {
	TimeLimit time.Duration `yaml:"timeLimit"`
	// MaxTimeLimit caps what a request may ask for.
	MaxTimeLimit    time.Duration `yaml:"maxTimeLimit"`
	Workers         int           `yaml:"workers"`
	PenaltyWeight   int64         `yaml:"penaltyWeight"`
	WarmStart       bool          `yaml:"warmStart"`
	WarmStartBudget time.Duration `yaml:"warmStartBudget"`
	// MaxConcurrent bounds solves running at once; further async runs queue.
	MaxConcurrent int `yaml:"maxConcurrent"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

type Webhooks struct {
	URLs        []string      `yaml:"urls"`
	Secret      string        `yaml:"secret"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

type Config struct {
	Port        string    `yaml:"port"`
	DatabaseURL string    `yaml:"databaseUrl"`
	Migrate     bool      `yaml:"migrate"`
	RedisURL    string    `yaml:"redisUrl"`
	Log         Log       `yaml:"log"`
	Solver      Solver    `yaml:"solver"`
	RateLimit   RateLimit `yaml:"rateLimit"`
	Webhooks    Webhooks  `yaml:"webhooks"`
}

func Default() Config {
	return Config{
		Port:    "8080",
		Migrate: true,
		Log:     Log{Level: "info"},
		Solver: Solver{
			TimeLimit:       cp.DefaultTimeLimit,
			MaxTimeLimit:    5 * time.Minute,
			Workers:         cp.DefaultWorkers,
			PenaltyWeight:   vrp.DefaultPenaltyWeight,
			WarmStartBudget: vrp.DefaultWarmStartBudget,
			MaxConcurrent:   2,
		},
		RateLimit: RateLimit{PerSecond: 2, Burst: 4},
		Webhooks: Webhooks{
			MaxAttempts: 10,
			Timeout:     5 * time.Second,
			Interval:    time.Second,
		},
	}
}

// Load reads path (skipped when empty) and envFile (skipped when missing),
// applies environment overrides and validates the result.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	parse := func(key string, set func(string) error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err))
		}
	}

	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("WEBHOOK_SECRET", &c.Webhooks.Secret)
	parse("DB_MIGRATE", func(v string) (err error) {
		c.Migrate, err = strconv.ParseBool(v)
		return err
	})
	parse("LOG_PRETTY", func(v string) (err error) {
		c.Log.Pretty, err = strconv.ParseBool(v)
		return err
	})
	parse("SOLVER_TIME_LIMIT", func(v string) (err error) {
		c.Solver.TimeLimit, err = time.ParseDuration(v)
		return err
	})
	parse("SOLVER_WORKERS", func(v string) (err error) {
		c.Solver.Workers, err = strconv.Atoi(v)
		return err
	})
	parse("SOLVER_PENALTY_WEIGHT", func(v string) (err error) {
		c.Solver.PenaltyWeight, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	parse("SOLVER_WARM_START", func(v string) (err error) {
		c.Solver.WarmStart, err = strconv.ParseBool(v)
		return err
	})
	parse("WEBHOOK_MAX_ATTEMPTS", func(v string) (err error) {
		c.Webhooks.MaxAttempts, err = strconv.Atoi(v)
		return err
	})
	parse("WEBHOOK_URLS", func(v string) error {
		c.Webhooks.URLs = c.Webhooks.URLs[:0]
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Webhooks.URLs = append(c.Webhooks.URLs, u)
			}
		}
		return nil
	})
	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		bad("port %q is not numeric", c.Port)
	}
	if c.Solver.TimeLimit <= 0 {
		bad("solver.timeLimit must be positive")
	}
	if c.Solver.MaxTimeLimit < c.Solver.TimeLimit {
		bad("solver.maxTimeLimit %s below solver.timeLimit %s", c.Solver.MaxTimeLimit, c.Solver.TimeLimit)
	}
	if c.Solver.Workers < 1 {
		bad("solver.workers must be at least 1")
	}
	if c.Solver.PenaltyWeight < 1 && c.Solver.PenaltyWeight != vrp.NoPenalty {
		bad("solver.penaltyWeight must be at least 1, or %d for distance only", vrp.NoPenalty)
	}
	if c.Solver.MaxConcurrent < 1 {
		bad("solver.maxConcurrent must be at least 1")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst < 1 {
		bad("rateLimit needs perSecond > 0 and burst >= 1")
	}
	if c.Webhooks.MaxAttempts < 1 {
		bad("webhooks.maxAttempts must be at least 1")
	}
	for _, u := range c.Webhooks.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			bad("webhook url %q must be http(s)", u)
		}
	}
	return errors.Join(errs...)
}

// SolveParams is the solver budget for a request asking for timeLimit and
// workers, zero meaning the configured default.
func (s Solver) SolveParams(timeLimit time.Duration, workers int) cp.Params {
	p := cp.Params{TimeLimit: s.TimeLimit, Workers: s.Workers}
	if timeLimit > 0 {
		p.TimeLimit = min(timeLimit, s.MaxTimeLimit)
	}
	if workers > 0 {
		p.Workers = workers
	}
	return p
}
