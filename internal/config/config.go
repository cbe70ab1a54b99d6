package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Empty RedisAddr keeps the ledger in memory.
	RedisAddr string

	LedgerWorkers     int
	LedgerChannelSize int

	BankMinLatency  time.Duration
	BankMaxLatency  time.Duration
	BankFailureRate float64

	SettleTimeout time.Duration
	AmountLimit   float64
}

// SetDefaults registers the defaults and binds every key to its environment variable.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "5000")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LEDGER_WORKERS", 10)
	v.SetDefault("LEDGER_CHANNEL_SIZE", 100)
	v.SetDefault("BANK_MIN_LATENCY", 100*time.Millisecond)
	v.SetDefault("BANK_MAX_LATENCY", 500*time.Millisecond)
	v.SetDefault("BANK_FAILURE_RATE", 0.1)
	v.SetDefault("SETTLE_TIMEOUT", 5*time.Second)
	v.SetDefault("AMOUNT_LIMIT", 50000.0)
	v.AutomaticEnv()
}

func Load(v *viper.Viper) *Config {
	return &Config{
		Port:              v.GetString("APP_PORT"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		LedgerWorkers:     v.GetInt("LEDGER_WORKERS"),
		LedgerChannelSize: v.GetInt("LEDGER_CHANNEL_SIZE"),
		BankMinLatency:    v.GetDuration("BANK_MIN_LATENCY"),
		BankMaxLatency:    v.GetDuration("BANK_MAX_LATENCY"),
		BankFailureRate:   v.GetFloat64("BANK_FAILURE_RATE"),
		SettleTimeout:     v.GetDuration("SETTLE_TIMEOUT"),
		AmountLimit:       v.GetFloat64("AMOUNT_LIMIT"),
	}
}
