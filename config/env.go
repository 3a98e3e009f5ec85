package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Functions

// LoadEnv looks for an .env file in the directory of
// the proxy and applies every recognized variable as
// an override on top of the values parsed from the
// TOML config file. Variables already present in the
// process environment take precedence over the file.
// This enables host adaptions without needing to
// maintain two different config files.
func LoadEnv(conf *Config) error {

	// Load environment file if one is present.
	err := godotenv.Load(".env")
	if (err != nil) && (os.IsNotExist(err) != true) {
		return fmt.Errorf("failed to read in .env file with: %v", err)
	}

	if host, ok := os.LookupEnv("UPSTREAM_IMAP_HOST"); ok {
		conf.Upstream.Host = host
	}

	if port, ok := os.LookupEnv("UPSTREAM_IMAP_PORT"); ok {

		num, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return fmt.Errorf("failed to parse UPSTREAM_IMAP_PORT value '%s' with: %v", port, err)
		}

		conf.Upstream.Port = uint16(num)
	}

	if ssl, ok := os.LookupEnv("UPSTREAM_IMAP_SSL"); ok {

		use, err := strconv.ParseBool(ssl)
		if err != nil {
			return fmt.Errorf("failed to parse UPSTREAM_IMAP_SSL value '%s' with: %v", ssl, err)
		}

		conf.Upstream.UseTLS = use
	}

	if host, ok := os.LookupEnv("LISTEN_HOST"); ok {
		conf.Proxy.ListenHost = host
	}

	if port, ok := os.LookupEnv("UNSECURE_PORT"); ok {

		num, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return fmt.Errorf("failed to parse UNSECURE_PORT value '%s' with: %v", port, err)
		}

		conf.Proxy.UnsecurePort = uint16(num)
	}

	if port, ok := os.LookupEnv("SECURE_PORT"); ok {

		num, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return fmt.Errorf("failed to parse SECURE_PORT value '%s' with: %v", port, err)
		}

		conf.Proxy.SecurePort = uint16(num)
	}

	if loc, ok := os.LookupEnv("TLS_CERT_FILE"); ok {
		conf.Proxy.CertLoc = loc
	}

	if loc, ok := os.LookupEnv("TLS_KEY_FILE"); ok {
		conf.Proxy.KeyLoc = loc
	}

	if enabled, ok := os.LookupEnv("QUARANTINE_ENABLED"); ok {

		use, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("failed to parse QUARANTINE_ENABLED value '%s' with: %v", enabled, err)
		}

		conf.Filter.QuarantineEnabled = use
	}

	if amount, ok := os.LookupEnv("FILTER_MIN_AMOUNT"); ok {

		min, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return fmt.Errorf("failed to parse FILTER_MIN_AMOUNT value '%s' with: %v", amount, err)
		}

		conf.Filter.MinAmount = min
	}

	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		conf.LogLevel = lvl
	}

	if host, ok := os.LookupEnv("API_HOST"); ok {
		conf.API.Host = host
	}

	if port, ok := os.LookupEnv("API_PORT"); ok {

		num, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return fmt.Errorf("failed to parse API_PORT value '%s' with: %v", port, err)
		}

		conf.API.Port = uint16(num)
	}

	if cors, ok := os.LookupEnv("ENABLE_CORS"); ok {

		use, err := strconv.ParseBool(cors)
		if err != nil {
			return fmt.Errorf("failed to parse ENABLE_CORS value '%s' with: %v", cors, err)
		}

		conf.API.EnableCORS = use
	}

	if origins, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {

		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		conf.API.AllowedOrigins = parts
	}

	if file, ok := os.LookupEnv("ACCOUNTS_FILE"); ok {
		conf.Accounts.File = file
	}

	return nil
}
