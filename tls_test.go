package main

import (
	"crypto/x509"
	"testing"
	"time"
)

func TestGenerateTLSConfigReturnsValidCert(t *testing.T) {
	validity := 2 * time.Hour
	info, err := generateTLSConfig(validity, "")
	if err != nil {
		t.Fatalf("generateTLSConfig: %v", err)
	}

	if info.Config == nil {
		t.Fatal("expected non-nil tls.Config")
	}
	if info.Fingerprint == "" {
		t.Fatal("expected non-empty fingerprint")
	}
	if len(info.Fingerprint) != 64 { // SHA-256 hex = 32 bytes = 64 chars
		t.Errorf("fingerprint length: got %d, want 64", len(info.Fingerprint))
	}
	if len(info.Config.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(info.Config.Certificates))
	}

	leaf := info.Config.Certificates[0].Leaf
	if leaf == nil {
		t.Fatal("expected parsed leaf certificate")
	}
	if leaf.Subject.CommonName != "screenrelay" {
		t.Errorf("CN: got %q, want %q", leaf.Subject.CommonName, "screenrelay")
	}
	if !info.NotAfter.Equal(leaf.NotAfter) {
		t.Errorf("TLSInfo.NotAfter = %v, want %v", info.NotAfter, leaf.NotAfter)
	}

	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		t.Errorf("cert not valid at current time: NotBefore=%v NotAfter=%v", leaf.NotBefore, leaf.NotAfter)
	}

	expectedAfter := now.Add(validity)
	if leaf.NotAfter.Before(expectedAfter.Add(-2 * time.Hour)) {
		t.Errorf("NotAfter too early: %v (expected near %v)", leaf.NotAfter, expectedAfter)
	}
}

func TestGenerateTLSConfigRejectsNonPositiveValidity(t *testing.T) {
	for _, validity := range []time.Duration{0, -time.Hour} {
		if _, err := generateTLSConfig(validity, ""); err == nil {
			t.Errorf("generateTLSConfig(%v, \"\") = nil error, want rejection", validity)
		}
	}
}

func TestGenerateTLSConfigUsesHostnameAsCommonName(t *testing.T) {
	info, err := generateTLSConfig(time.Hour, "relay.example.com")
	if err != nil {
		t.Fatalf("generateTLSConfig: %v", err)
	}
	leaf := info.Config.Certificates[0].Leaf
	if leaf.Subject.CommonName != "relay.example.com" {
		t.Errorf("CN = %q, want %q", leaf.Subject.CommonName, "relay.example.com")
	}

	foundHost, foundLocalhost := false, false
	for _, name := range leaf.DNSNames {
		if name == "relay.example.com" {
			foundHost = true
		}
		if name == "localhost" {
			foundLocalhost = true
		}
	}
	if !foundHost || !foundLocalhost {
		t.Errorf("expected both hostname and localhost in SANs, got %v", leaf.DNSNames)
	}
}

func TestGenerateTLSConfigUniqueCerts(t *testing.T) {
	info1, err := generateTLSConfig(time.Hour, "")
	if err != nil {
		t.Fatalf("generateTLSConfig: %v", err)
	}
	info2, err := generateTLSConfig(time.Hour, "")
	if err != nil {
		t.Fatalf("generateTLSConfig: %v", err)
	}
	if info1.Fingerprint == info2.Fingerprint {
		t.Error("two calls should produce different certificates")
	}
}

func TestGenerateTLSConfigSelfSigned(t *testing.T) {
	info, err := generateTLSConfig(time.Hour, "")
	if err != nil {
		t.Fatalf("generateTLSConfig: %v", err)
	}
	leaf := info.Config.Certificates[0].Leaf

	if leaf.Issuer.CommonName != leaf.Subject.CommonName {
		t.Errorf("expected self-signed cert: issuer=%q subject=%q", leaf.Issuer.CommonName, leaf.Subject.CommonName)
	}

	found := false
	for _, name := range leaf.DNSNames {
		if name == "localhost" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected localhost in DNS names, got %v", leaf.DNSNames)
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	_, err = leaf.Verify(x509.VerifyOptions{
		DNSName: "localhost",
		Roots:   pool,
	})
	if err != nil {
		t.Errorf("self-verification failed: %v", err)
	}
}
