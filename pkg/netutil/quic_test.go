package netutil

import (
	"context"
	"crypto/x509"
	"testing"
	"time"
)

func TestGenerateEphemeralCertificateParsesAndIsValidNow(t *testing.T) {
	cert, err := GenerateEphemeralCertificate("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("generated certificate did not parse: %v", err)
	}
	now := time.Now()
	if now.Before(parsed.NotBefore) || now.After(parsed.NotAfter) {
		t.Fatal("expected the generated certificate to be valid now")
	}
	if len(parsed.IPAddresses) != 1 || parsed.IPAddresses[0].String() != "127.0.0.1" {
		t.Fatalf("expected 127.0.0.1 as a SAN, got %v", parsed.IPAddresses)
	}
}

func TestGenerateEphemeralCertificateFallsBackToDNSName(t *testing.T) {
	cert, err := GenerateEphemeralCertificate("desk.example.internal:7890")
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.DNSNames) != 1 || parsed.DNSNames[0] != "desk.example.internal" {
		t.Fatalf("expected desk.example.internal as a DNS SAN, got %v", parsed.DNSNames)
	}
}

func TestListenDialRoundTrip(t *testing.T) {
	ln, err := ListenQUIC("127.0.0.1:0", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	addr := ln.ql.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acceptDone := make(chan error, 1)
	go func() {
		_, _, err := ln.Accept(ctx)
		acceptDone <- err
	}()

	stream, err := DialQUIC(ctx, addr, true)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	if err := <-acceptDone; err != nil {
		t.Fatalf("accept failed: %v", err)
	}
}
