package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// TLSInfo bundles a generated self-signed certificate with the metadata
// a screen-share client needs to pin it under trust-on-first-use: §6
// makes TLS opt-in and non-secure ws:// the default, and §1's Non-goals
// cap authentication at TOFU, not a real CA chain. The fingerprint here
// is what the client compares against on every reconnect.
type TLSInfo struct {
	Config      *tls.Config
	Fingerprint string
	NotAfter    time.Time
}

// generateTLSConfig creates a self-signed TLS certificate for the relay's
// optional HTTPS/WSS listener. validity must be positive; hostname is
// used as the Common Name and added to the DNS SANs alongside
// "localhost" (empty hostname pins "localhost" only, the loopback/dev
// case).
func generateTLSConfig(validity time.Duration, hostname string) (TLSInfo, error) {
	if validity <= 0 {
		return TLSInfo{}, fmt.Errorf("[tls] certificate validity must be positive, got %s", validity)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return TLSInfo{}, fmt.Errorf("[tls] generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return TLSInfo{}, fmt.Errorf("[tls] generate serial: %w", err)
	}

	cn := "screenrelay"
	if hostname != "" {
		cn = hostname
	}

	sans := []string{"localhost"}
	if hostname != "" && hostname != "localhost" {
		sans = append(sans, hostname)
	}

	notAfter := time.Now().Add(validity)
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              sans,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return TLSInfo{}, fmt.Errorf("[tls] create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return TLSInfo{}, fmt.Errorf("[tls] parse certificate: %w", err)
	}

	fp := sha256.Sum256(certDER)
	fingerprint := hex.EncodeToString(fp[:])

	tlsCert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
		Leaf:        cert,
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
	}

	return TLSInfo{Config: tlsConfig, Fingerprint: fingerprint, NotAfter: cert.NotAfter}, nil
}
