// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct parsing and
// github.com/joho/godotenv for optional .env files. Load caches each parsed
// struct type (per prefix) so services can call it from anywhere without
// re-parsing; Parse skips the cache.
//
// Field types that implement encoding.TextUnmarshaler (tier.Tier,
// tier.ProductMap) are parsed natively. Other custom types can be registered
// with WithParser.
//
//	var cfg gatekeeper.Config
//	config.MustLoad(&cfg)
//
//	var staging redis.Config
//	_ = config.Load(&staging, config.WithPrefix("STAGING_"))
package config
