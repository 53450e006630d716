package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FeatureSettings is the per-feature section of usage.yml.
type FeatureSettings struct {
	MonthlyQuota int64         `mapstructure:"monthlyquota"`
	CreditCost   int64         `mapstructure:"creditcost"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

type RateLimitSettings struct {
	Hourly int64 `mapstructure:"hourly"`
	Daily  int64 `mapstructure:"daily"`
}

// UsageConfig is the hot-reloadable usage policy.
type UsageConfig struct {
	Features   map[string]FeatureSettings `mapstructure:"features"`
	RateLimits RateLimitSettings          `mapstructure:"ratelimits"`
}

// Catalog converts the settings into a feature catalog. The config must be valid.
func (c UsageConfig) Catalog() featuredomain.Catalog {
	defs := make([]featuredomain.Definition, 0, len(c.Features))
	for raw, settings := range c.Features {
		code, err := featuredomain.Parse(raw)
		if err != nil {
			continue
		}
		defs = append(defs, featuredomain.Definition{
			Code:         code,
			MonthlyQuota: settings.MonthlyQuota,
			CreditCost:   settings.CreditCost,
			Cooldown:     settings.Cooldown,
		})
	}
	return featuredomain.NewCatalog(defs, featuredomain.RateLimits{
		Hourly: c.RateLimits.Hourly,
		Daily:  c.RateLimits.Daily,
	})
}

func DefaultUsageConfig() UsageConfig {
	catalog := featuredomain.DefaultCatalog()
	features := make(map[string]FeatureSettings, len(featuredomain.All))
	for _, def := range catalog.Definitions() {
		features[def.Code.String()] = FeatureSettings{
			MonthlyQuota: def.MonthlyQuota,
			CreditCost:   def.CreditCost,
			Cooldown:     def.Cooldown,
		}
	}
	return UsageConfig{
		Features: features,
		RateLimits: RateLimitSettings{
			Hourly: catalog.Rates.Hourly,
			Daily:  catalog.Rates.Daily,
		},
	}
}

type UsageConfigHolder struct {
	current atomic.Value // holds UsageConfig
}

func ProvideUsageConfigHolder(cfg Config, log *zap.Logger) (*UsageConfigHolder, error) {
	return NewUsageConfigHolder(cfg.UsageConfigDir, log)
}

// NewUsageConfigHolder reads usage.yml from dir (or the default search path when dir is empty)
// and keeps watching it for changes.
func NewUsageConfigHolder(dir string, log *zap.Logger) (*UsageConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("usage.config")

	v := viper.New()
	v.SetConfigName("usage")
	v.SetConfigType("yml")
	if dir = strings.TrimSpace(dir); dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath("/etc/meterguard")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("METERGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setUsageDefaults(v, DefaultUsageConfig())

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg, err := decodeUsageConfig(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateUsageConfig(cfg); err != nil {
		return nil, err
	}

	holder := &UsageConfigHolder{}
	holder.current.Store(cfg)

	if !found {
		log.Info("usage config file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeUsageConfig(v)
		if err != nil {
			log.Warn("usage config reload failed", zap.Error(err))
			return
		}
		if err := ValidateUsageConfig(updated); err != nil {
			log.Warn("invalid usage config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("usage config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticUsageConfigHolder returns a holder that never reloads.
func NewStaticUsageConfigHolder(cfg UsageConfig) *UsageConfigHolder {
	holder := &UsageConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *UsageConfigHolder) Get() UsageConfig {
	return h.current.Load().(UsageConfig)
}

// decodeUsageConfig unmarshals the merged settings so partial files keep the defaults
// of keys they omit.
func decodeUsageConfig(v *viper.Viper) (UsageConfig, error) {
	var wrapper struct {
		Usage UsageConfig `mapstructure:"usage"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return UsageConfig{}, err
	}
	return wrapper.Usage, nil
}

func setUsageDefaults(v *viper.Viper, defaults UsageConfig) {
	for code, settings := range defaults.Features {
		prefix := "usage.features." + code
		v.SetDefault(prefix+".monthlyQuota", settings.MonthlyQuota)
		v.SetDefault(prefix+".creditCost", settings.CreditCost)
		v.SetDefault(prefix+".cooldown", settings.Cooldown.String())
	}
	v.SetDefault("usage.rateLimits.hourly", defaults.RateLimits.Hourly)
	v.SetDefault("usage.rateLimits.daily", defaults.RateLimits.Daily)
}

func ValidateUsageConfig(cfg UsageConfig) error {
	if cfg.RateLimits.Hourly <= 0 {
		return errors.New("usage.rateLimits.hourly must be positive")
	}
	if cfg.RateLimits.Daily <= 0 {
		return errors.New("usage.rateLimits.daily must be positive")
	}

	seen := make(map[featuredomain.Code]struct{}, len(cfg.Features))
	for raw, settings := range cfg.Features {
		code, err := featuredomain.Parse(raw)
		if err != nil {
			return fmt.Errorf("usage.features: unknown feature %q", raw)
		}
		if settings.MonthlyQuota < 0 {
			return fmt.Errorf("usage.features.%s.monthlyQuota cannot be negative", raw)
		}
		if settings.CreditCost <= 0 {
			return fmt.Errorf("usage.features.%s.creditCost must be positive", raw)
		}
		if settings.Cooldown < 0 {
			return fmt.Errorf("usage.features.%s.cooldown cannot be negative", raw)
		}
		seen[code] = struct{}{}
	}
	for _, code := range featuredomain.All {
		if _, ok := seen[code]; !ok {
			return fmt.Errorf("usage.features.%s is missing", code)
		}
	}
	return nil
}
