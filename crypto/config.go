package crypto

import (
	"fmt"

	"crypto/tls"
)

// Functions

// NewPublicTLSConfig returns a TLS config that is to be
// used when exposing the proxy's secure listener to mail
// clients. It defines very strict defaults. Good parts of
// them were taken from the excellent post:
// "Achieving a Perfect SSL Labs Score with Go":
// https://blog.bracelab.com/achieving-perfect-ssl-labs-score-with-go
func NewPublicTLSConfig(certPath string, keyPath string) (*tls.Config, error) {

	var err error

	config := &tls.Config{
		Certificates:       make([]tls.Certificate, 1),
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
		CurvePreferences:   []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_RSA_WITH_AES_256_CBC_SHA,
		},
	}

	// Put certificate specified via arguments as the
	// only certificate into config.
	config.Certificates[0], err = tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS cert and key with: %v", err)
	}

	return config, nil
}

// NewUpstreamTLSConfig returns a TLS config for the
// client leg towards an upstream IMAP server. The
// upstream certificate is verified against the system
// trust store for the supplied server name.
func NewUpstreamTLSConfig(serverName string) *tls.Config {

	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
	}
}
