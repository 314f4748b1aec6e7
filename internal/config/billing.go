package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig is the school profile printed on receipts. It is read from billing.yml
// and may change while the process runs.
type BillingConfig struct {
	SchoolName    string `mapstructure:"schoolName"`
	SchoolAddress string `mapstructure:"schoolAddress"`
	SchoolEmail   string `mapstructure:"schoolEmail"`
	SchoolTaxID   string `mapstructure:"schoolTaxId"`
	Currency      string `mapstructure:"currency"`
	ReceiptFooter string `mapstructure:"receiptFooter"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		SchoolName:    "School",
		Currency:      "THB",
		ReceiptFooter: "Thank you for your payment.",
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/schoolbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SCHOOLBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.schoolName", defaults.SchoolName)
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.receiptFooter", defaults.ReceiptFooter)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)

	if fileFound && getenvBool("BILLING_CONFIG_WATCH", true) {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Printf("[billing-config] reload failed: %v", err)
				return
			}
			if err := validateBillingConfig(updated); err != nil {
				log.Printf("[billing-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[billing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.SchoolName) == "" {
		return errors.New("billing.schoolName cannot be empty")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	return nil
}
