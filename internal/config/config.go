package config

import (
	"fmt"
	"os"
	"time"

	"live-quiz-service/internal/domain"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Store struct {
		Key string `yaml:"key"`
	} `yaml:"store"`
	Game struct {
		TimeLimit int `yaml:"timeLimit"`
		// Points fields are pointers so an explicit 0 disables that bonus.
		Points    struct {
			First         *int `yaml:"first"`
			Second        *int `yaml:"second"`
			Third         *int `yaml:"third"`
			Participation *int `yaml:"participation"`
		} `yaml:"points"`
	} `yaml:"game"`
	Sync struct {
		Mode        string `yaml:"mode"`
		MaxAttempts int    `yaml:"maxAttempts"`
	} `yaml:"sync"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values that would make the game unplayable.
func (c Config) Validate() error {
	switch c.Sync.Mode {
	case "", "overwrite", "optimistic":
	default:
		return fmt.Errorf("sync.mode must be overwrite or optimistic, got %q", c.Sync.Mode)
	}
	if c.Game.TimeLimit < 0 || c.Game.TimeLimit > domain.MaxTimeLimitSeconds {
		return fmt.Errorf("game.timeLimit must be between 0 and %d", domain.MaxTimeLimitSeconds)
	}
	p := c.Game.Points
	for name, v := range map[string]*int{"first": p.First, "second": p.Second, "third": p.Third, "participation": p.Participation} {
		if v != nil && *v < 0 {
			return fmt.Errorf("game.points.%s must not be negative", name)
		}
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("sync.maxAttempts must not be negative")
	}
	return nil
}

// Settings returns the per-game defaults, falling back to the built-in values
// for anything left unset. A zero timeLimit means unset.
func (c Config) Settings() domain.Settings {
	s := domain.DefaultSettings()
	if c.Game.TimeLimit > 0 {
		s.TimeLimit = c.Game.TimeLimit
	}
	p := c.Game.Points
	if p.First != nil {
		s.PointsBySlot.First = *p.First
	}
	if p.Second != nil {
		s.PointsBySlot.Second = *p.Second
	}
	if p.Third != nil {
		s.PointsBySlot.Third = *p.Third
	}
	if p.Participation != nil {
		s.PointsBySlot.Participation = *p.Participation
	}
	return s
}

// SyncMode returns the configured mode, "overwrite" when unset.
func (c Config) SyncMode() string {
	if c.Sync.Mode == "" {
		return "overwrite"
	}
	return c.Sync.Mode
}

// MaxAttempts returns the optimistic retry budget, 3 when unset.
func (c Config) MaxAttempts() int {
	if c.Sync.MaxAttempts == 0 {
		return 3
	}
	return c.Sync.MaxAttempts
}

// ParseDuration parses a duration string or returns the fallback if empty.
func ParseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
