package app

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/grabber-app/cart/internal/domain/cart"
)

// Config holds the complete cart configuration, loadable from environment
// variables (GRABBER_ prefix), flags, or YAML config files.
type Config struct {
	DeliveryFee           string        `default:"2.99" usage:"Base delivery fee applied below the free-delivery threshold" flag:"delivery-fee"`
	FreeDeliveryThreshold string        `default:"500" usage:"Subtotal at which delivery becomes free" flag:"free-delivery-threshold"`
	StorageKey            string        `default:"grabber-cart-storage" usage:"Key the serialized cart is stored under" flag:"storage-key"`
	SaveDelay             time.Duration `default:"250ms" usage:"Coalescing window for background cart saves" flag:"save-delay"`
	Storage               StorageConfig
	Coupons               CouponConfig
}

// StorageConfig selects and configures the cart persistence backend.
type StorageConfig struct {
	Driver      string        `default:"memory" usage:"Cart storage driver: memory, postgres, or redis"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (postgres driver)" flag:"database-url"`
	RedisAddr   string        `default:"localhost:6379" usage:"Redis address (redis driver)" flag:"redis-addr"`
	RedisTTL    time.Duration `default:"720h" usage:"Redis cart expiry; 0 keeps carts forever" flag:"redis-ttl"`
}

// CouponConfig configures the optional promo-code prefilter.
type CouponConfig struct {
	CodeFiles []string `usage:"Gzipped promo-code list files for the bloom prefilter" flag:"coupon-code-files"`
}

// LoadConfig loads configuration from environment variables, flags, and YAML
// config files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GRABBER",
		Files:     []string{"config.yaml", "/etc/grabber/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}

// CartDefaults parses the configured pricing values into cart defaults.
func (c *Config) CartDefaults() (cart.Defaults, error) {
	fee, err := decimal.NewFromString(c.DeliveryFee)
	if err != nil {
		return cart.Defaults{}, errors.Wrapf(err, "parse delivery fee %q", c.DeliveryFee)
	}
	threshold, err := decimal.NewFromString(c.FreeDeliveryThreshold)
	if err != nil {
		return cart.Defaults{}, errors.Wrapf(err, "parse free delivery threshold %q", c.FreeDeliveryThreshold)
	}
	return cart.Defaults{
		DeliveryFee:           fee,
		FreeDeliveryThreshold: threshold,
	}, nil
}
