package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CampaignConfig tunes the referral campaign without a redeploy.
type CampaignConfig struct {
	ReminderIntervalDays int     `mapstructure:"reminderIntervalDays"`
	StalledAfterDays     int     `mapstructure:"stalledAfterDays"`
	PointsIncentive      float64 `mapstructure:"pointsIncentive"`
	GuaranteedBalance    float64 `mapstructure:"guaranteedBalance"`
	Currency             string  `mapstructure:"currency"`
	ReminderSenderLabel  string  `mapstructure:"reminderSenderLabel"`
}

func DefaultCampaignConfig() CampaignConfig {
	return CampaignConfig{
		ReminderIntervalDays: 7,
		StalledAfterDays:     21,
		PointsIncentive:      50,
		GuaranteedBalance:    25,
		Currency:             "EUR",
		ReminderSenderLabel:  "The Pioneer team",
	}
}

func (c CampaignConfig) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalDays) * 24 * time.Hour
}

func (c CampaignConfig) StalledAfter() time.Duration {
	return time.Duration(c.StalledAfterDays) * 24 * time.Hour
}

type CampaignConfigHolder struct {
	current atomic.Value // holds CampaignConfig
}

// NewStaticCampaignConfig returns a holder that never reloads.
func NewStaticCampaignConfig(cfg CampaignConfig) *CampaignConfigHolder {
	holder := &CampaignConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCampaignConfigHolder(log *zap.Logger) (*CampaignConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("campaign.config")

	v := viper.New()
	v.SetConfigName("campaign")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/pioneer")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PIONEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCampaignConfig()
	v.SetDefault("campaign.reminderIntervalDays", defaults.ReminderIntervalDays)
	v.SetDefault("campaign.stalledAfterDays", defaults.StalledAfterDays)
	v.SetDefault("campaign.pointsIncentive", defaults.PointsIncentive)
	v.SetDefault("campaign.guaranteedBalance", defaults.GuaranteedBalance)
	v.SetDefault("campaign.currency", defaults.Currency)
	v.SetDefault("campaign.reminderSenderLabel", defaults.ReminderSenderLabel)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var cfg CampaignConfig
	if err := v.UnmarshalKey("campaign", &cfg); err != nil {
		return nil, err
	}
	if err := validateCampaignConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCampaignConfig(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CampaignConfig
		if err := v.UnmarshalKey("campaign", &updated); err != nil {
			log.Warn("campaign config reload failed", zap.Error(err))
			return
		}
		if err := validateCampaignConfig(updated); err != nil {
			log.Warn("invalid campaign config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("campaign config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CampaignConfigHolder) Get() CampaignConfig {
	return h.current.Load().(CampaignConfig)
}

func validateCampaignConfig(cfg CampaignConfig) error {
	if cfg.ReminderIntervalDays <= 0 {
		return errors.New("campaign.reminderIntervalDays must be positive")
	}
	if cfg.StalledAfterDays <= 0 {
		return errors.New("campaign.stalledAfterDays must be positive")
	}
	if cfg.PointsIncentive < 0 || cfg.GuaranteedBalance < 0 {
		return errors.New("campaign incentives cannot be negative")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("campaign.currency cannot be empty")
	}
	return nil
}
