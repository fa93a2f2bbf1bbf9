package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BillingConfig is the rate card applied to storage billing runs.
// Money values are decimal strings so the file stays human-editable.
type BillingConfig struct {
	Currency             string         `mapstructure:"currency" validate:"required,len=3"`
	MinimumMonthlyCharge string         `mapstructure:"minimumMonthlyCharge" validate:"required,numeric"`
	SetupFee             string         `mapstructure:"setupFee" validate:"required,numeric"`
	IncludeWorkOrders    bool           `mapstructure:"includeWorkOrders"`
	ClaimLease           time.Duration  `mapstructure:"claimLease" validate:"gte=0"`
	Catalog              ProductCatalog `mapstructure:"catalog"`
}

// ProductCatalog maps every billable line kind to the product code booked on the invoice.
type ProductCatalog struct {
	SetupFee           string `mapstructure:"setupFee" validate:"required"`
	StorageFee         string `mapstructure:"storageFee" validate:"required"`
	MinimumAdjustment  string `mapstructure:"minimumAdjustment" validate:"required"`
	WorkOrderShredding string `mapstructure:"workOrderShredding" validate:"required"`
	WorkOrderRetrieval string `mapstructure:"workOrderRetrieval" validate:"required"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency:             "USD",
		MinimumMonthlyCharge: "45.00",
		SetupFee:             "3.50",
		IncludeWorkOrders:    true,
		ClaimLease:           30 * time.Minute,
		Catalog: ProductCatalog{
			SetupFee:           "STORAGE-SETUP",
			StorageFee:         "STORAGE-MONTHLY",
			MinimumAdjustment:  "STORAGE-MINIMUM",
			WorkOrderShredding: "SVC-SHRED",
			WorkOrderRetrieval: "SVC-RETRIEVAL",
		},
	}
}

// MinimumCharge returns the parsed minimum monthly charge. Call only on validated configs.
func (c BillingConfig) MinimumCharge() decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(c.MinimumMonthlyCharge))
}

// SetupFeeAmount returns the parsed setup fee. Call only on validated configs.
func (c BillingConfig) SetupFeeAmount() decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(c.SetupFee))
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/vaultline/config") // Volume-mounted config
	v.AddConfigPath("/etc/vaultline")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("VAULTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setBillingDefaults(v, DefaultBillingConfig())

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)

	if fileLoaded && getenvBool("BILLING_CONFIG_WATCH", true) {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Printf("[billing-config] reload failed: %v", err)
				return
			}
			if err := ValidateBillingConfig(updated); err != nil {
				log.Printf("[billing-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[billing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed rate card without file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func setBillingDefaults(v *viper.Viper, d BillingConfig) {
	v.SetDefault("billing.currency", d.Currency)
	v.SetDefault("billing.minimumMonthlyCharge", d.MinimumMonthlyCharge)
	v.SetDefault("billing.setupFee", d.SetupFee)
	v.SetDefault("billing.includeWorkOrders", d.IncludeWorkOrders)
	v.SetDefault("billing.claimLease", d.ClaimLease)
	v.SetDefault("billing.catalog.setupFee", d.Catalog.SetupFee)
	v.SetDefault("billing.catalog.storageFee", d.Catalog.StorageFee)
	v.SetDefault("billing.catalog.minimumAdjustment", d.Catalog.MinimumAdjustment)
	v.SetDefault("billing.catalog.workOrderShredding", d.Catalog.WorkOrderShredding)
	v.SetDefault("billing.catalog.workOrderRetrieval", d.Catalog.WorkOrderRetrieval)
}

var billingValidator = validator.New()

func ValidateBillingConfig(cfg BillingConfig) error {
	if err := billingValidator.Struct(cfg); err != nil {
		return fmt.Errorf("billing config: %w", err)
	}
	if cfg.MinimumCharge().IsNegative() {
		return errors.New("billing.minimumMonthlyCharge cannot be negative")
	}
	if cfg.SetupFeeAmount().IsNegative() {
		return errors.New("billing.setupFee cannot be negative")
	}
	return nil
}
