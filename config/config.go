package config

import (
	"fmt"
	"strings"

	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	LogLevel string
	Proxy    Proxy
	Upstream Upstream
	Filter   Filter
	API      API
	Accounts Accounts
}

// Proxy describes the client-facing part of the
// interception proxy, the listeners mail clients
// connect to instead of their real IMAP server.
type Proxy struct {
	ListenHost     string
	UnsecurePort   uint16
	SecurePort     uint16
	PrometheusAddr string
	CertLoc        string
	KeyLoc         string
}

// Upstream carries the coordinates of the actual
// IMAP server all accepted traffic is relayed to.
type Upstream struct {
	Host   string
	Port   uint16
	UseTLS bool
}

// Filter bundles the settings that decide which
// APPEND messages are held back in quarantine.
type Filter struct {
	QuarantineEnabled bool
	MinAmount         float64
}

// API configures the HTTP surface used to inspect,
// release, and discard quarantined messages.
type API struct {
	Host           string
	Port           uint16
	EnableCORS     bool
	AllowedOrigins []string
}

// Accounts points to the JSON file holding per-user
// upstream overrides managed via the API.
type Accounts struct {
	File string
}

// Functions

// LoadConfig takes in the path to the main config
// file of the proxy in TOML syntax and places the
// values from the file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	// A secure listener without key material cannot
	// be brought up, catch this early.
	if (conf.Proxy.SecurePort != 0) && ((conf.Proxy.CertLoc == "") || (conf.Proxy.KeyLoc == "")) {
		return nil, fmt.Errorf("secure listener requires both a certificate and a key location")
	}

	// Retrieve absolute path of project directory.
	// Start with current directory.
	absProxyPath, err := filepath.Abs("./")
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of current directory: %v", err)
	}

	// Check if path ends in 'imap-email-filter'.
	if strings.HasSuffix(absProxyPath, "imap-email-filter") != true {

		// If not, use the directory one level above.
		absProxyPath, err = filepath.Abs("../")
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of project directory: %v", err)
		}
	}

	// Prefix each relative path in config with
	// just obtained absolute path to project directory.

	// Proxy.CertLoc
	if (conf.Proxy.CertLoc != "") && (filepath.IsAbs(conf.Proxy.CertLoc) != true) {
		conf.Proxy.CertLoc = filepath.Join(absProxyPath, conf.Proxy.CertLoc)
	}

	// Proxy.KeyLoc
	if (conf.Proxy.KeyLoc != "") && (filepath.IsAbs(conf.Proxy.KeyLoc) != true) {
		conf.Proxy.KeyLoc = filepath.Join(absProxyPath, conf.Proxy.KeyLoc)
	}

	// Accounts.File
	if (conf.Accounts.File != "") && (filepath.IsAbs(conf.Accounts.File) != true) {
		conf.Accounts.File = filepath.Join(absProxyPath, conf.Accounts.File)
	}

	return conf, nil
}
