package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// BaseDenom is the chain denom of the pool's base asset (index 0).
	BaseDenom string
	// QuoteDenom is the chain denom of the pool's quote asset (index 1).
	QuoteDenom string

	// BasePrecision is the native decimal precision of the base asset.
	BasePrecision uint8
	// QuotePrecision is the native decimal precision of the quote asset.
	QuotePrecision uint8

	// InitialPriceScale is the starting price scale (base per quote) used when
	// the pool record does not exist yet. Decimal string.
	InitialPriceScale string
	// InitialAmp and InitialGamma are the starting curve parameters used when
	// the pool record does not exist yet. Decimal strings.
	InitialAmp   string
	InitialGamma string

	// FeeRecipient receives the maker share of swap fees. Empty disables it.
	FeeRecipient string
	// MakerFeeRate is the fraction of the total fee routed to FeeRecipient.
	// Decimal string.
	MakerFeeRate string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	BaseDenom, err = getEnv("POOL_BASE_DENOM")
	if err != nil {
		return err
	}

	QuoteDenom, err = getEnv("POOL_QUOTE_DENOM")
	if err != nil {
		return err
	}

	BasePrecision, err = getEnvAsUint8("POOL_BASE_PRECISION")
	if err != nil {
		return err
	}

	QuotePrecision, err = getEnvAsUint8("POOL_QUOTE_PRECISION")
	if err != nil {
		return err
	}

	InitialPriceScale, err = getEnv("POOL_INITIAL_PRICE_SCALE")
	if err != nil {
		return err
	}

	InitialAmp, err = getEnv("POOL_AMP")
	if err != nil {
		return err
	}

	InitialGamma, err = getEnv("POOL_GAMMA")
	if err != nil {
		return err
	}

	// Maker fee routing is optional; without a recipient the whole fee stays
	// with LPs.
	FeeRecipient = getEnvWithDefault("FEE_RECIPIENT", "")
	MakerFeeRate = getEnvWithDefault("MAKER_FEE_RATE", "0")

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("BaseDenom", BaseDenom).
		Str("QuoteDenom", QuoteDenom).
		Str("InitialPriceScale", InitialPriceScale).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvWithDefault retrieves a string environment variable with a fallback.
func getEnvWithDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsUint8 retrieves an environment variable as a uint8. Returns error if not set or invalid.
func getEnvAsUint8(key string) (uint8, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 8)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint8, got: " + valueStr)
	}
	return uint8(value), nil
}
