//go:build ignore
// +build ignore

// Go script to generate a self-signed TLS certificate for the
// proxy's secure listener. Heavily inspired by:
// - https://raw.githubusercontent.com/golang/go/master/src/crypto/tls/generate_cert.go
// - https://ericchiang.github.io/tls/go/https/2015/06/21/go-tls.html
package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"net"
	"os"
	"strings"
	"time"

	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"path/filepath"

	"github.com/sheperdglobal-alt/imap-email-filter/config"
)

// Variables

var (
	configPath = flag.String("config", "config.toml", "If you use a custom config path specify it via this flag")
	hosts      = flag.String("hosts", "localhost,127.0.0.1", "Comma-separated hostnames and IP addresses the certificate should be valid for")
	validFrom  = flag.String("start-date", "", "Creation date formatted as Jan 1 15:04:05 2011")
	validFor   = flag.Duration("duration", (365 * 24 * time.Hour), "Duration that the certificate will be valid for")
	rsaBits    = flag.Int("rsa-bits", 2048, "Size of RSA key to generate")
)

// Functions

// BootstrapCertTempl returns a certificate template that
// has all default values for our certificate already set.
func BootstrapCertTempl(nBef time.Time, nAft time.Time) (*x509.Certificate, error) {

	// For serial number generation we need a biggest
	// number to mark the range of the serial number.
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)

	// Now generate that random number.
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("[crypto.GenerateCert] Could not generate random serial number: %s\n", err.Error())
	}

	// Build a default template we use for the certificate.
	certificateTemplate := &x509.Certificate{
		SignatureAlgorithm:    x509.SHA512WithRSA,
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"imap-email-filter"}},
		NotBefore:             nBef,
		NotAfter:              nAft,
		BasicConstraintsValid: true,
	}

	return certificateTemplate, nil
}

// WritePEM encodes the supplied PEM block and saves it
// under the supplied path, creating missing directories
// along the way.
func WritePEM(path string, mode os.FileMode, block *pem.Block) error {

	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("[crypto.GenerateCert] Failed to create directory for '%s': %s\n", path, err.Error())
	}

	file, err := os.OpenFile(path, (os.O_WRONLY | os.O_CREATE | os.O_TRUNC), mode)
	if err != nil {
		return fmt.Errorf("[crypto.GenerateCert] Failed to open file '%s': %s\n", path, err.Error())
	}
	defer file.Close()

	// Encode it in PEM format and save to disk.
	err = pem.Encode(file, block)
	if err != nil {
		return fmt.Errorf("[crypto.GenerateCert] Failed to write '%s' in PEM format to disk: %s\n", path, err.Error())
	}
	file.Sync()

	stdlog.Printf("[crypto.GenerateCert] Saved %s to disk.", path)

	return nil
}

func main() {

	var err error
	var notBefore time.Time
	var notAfter time.Time

	// Parse supplied command-line flags.
	flag.Parse()

	stdlog.Println("[crypto.GenerateCert] Generating key material for the proxy's secure listener.")

	if len(*validFrom) == 0 {

		// If no start date supplied, assume now.
		notBefore = time.Now()
	} else {

		// If start date supplied, try to parse.
		notBefore, err = time.Parse("Jan 2 15:04:05 2006", *validFrom)
		if err != nil {
			stdlog.Fatalf("[crypto.GenerateCert] Failed to parse creation date of certificate: %s", err.Error())
		}
	}

	// Add life-time of certificate to creation date.
	notAfter = notBefore.Add(*validFor)

	// Load proxy config to find out where the secure
	// listener expects its key material.
	conf, err := config.LoadConfig(*configPath)
	if err != nil {
		stdlog.Fatal(err)
	}

	if (conf.Proxy.CertLoc == "") || (conf.Proxy.KeyLoc == "") {
		stdlog.Fatal("[crypto.GenerateCert] Config does not specify both a certificate and a key location.")
	}

	// Generate the listener's key pair.
	key, err := rsa.GenerateKey(rand.Reader, *rsaBits)
	if err != nil {
		stdlog.Fatalf("[crypto.GenerateCert] Failed to generate key: %s", err.Error())
	}

	// Fetch a new certificate template.
	template, err := BootstrapCertTempl(notBefore, notAfter)
	if err != nil {
		stdlog.Fatal(err)
	}

	// Set specific certificate values for a server certificate.
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}

	for _, host := range strings.Split(*hosts, ",") {

		// Parse supplied addresses and sort them into IP
		// addresses and DNS names.
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	// Create the actual certificate, self-signed.
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		stdlog.Fatalf("[crypto.GenerateCert] Failed to create DER byte representation of certificate: %s", err.Error())
	}

	// Save certificate to the location the config points at.
	err = WritePEM(conf.Proxy.CertLoc, 0644, &pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err != nil {
		stdlog.Fatal(err)
	}

	// Save key next to it, restricted to the owner.
	err = WritePEM(conf.Proxy.KeyLoc, 0600, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err != nil {
		stdlog.Fatal(err)
	}

	stdlog.Println("[crypto.GenerateCert] Done generating key material. Goodbye.")
}
