// Package netutil dials and accepts the QUIC connections that carry a
// session's wire records, including the ephemeral self-signed
// certificate the host presents when no operator-supplied cert is
// configured.
package netutil

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPNProtocol is the TLS ALPN identifier negotiated on every session
// connection. A tls.Config supplied to ListenQUIC must advertise this
// in NextProtos or the handshake will fail to agree with DialQUIC's
// client config.
const ALPNProtocol = "beamdesk/1"

// QUICConfig tunes the single-stream-per-session QUIC transport. A
// session uses exactly one bidirectional stream; there is no
// multiplexing to configure beyond keepalive and idle timeout.
var quicConfig = &quic.Config{
	MaxIncomingStreams:    1,
	MaxIncomingUniStreams: 0,
	KeepAlivePeriod:       10 * time.Second,
	MaxIdleTimeout:        30 * time.Second,
}

// Listener accepts incoming host sessions over QUIC.
type Listener struct {
	ql *quic.Listener
}

// ListenQUIC opens a QUIC listener on addr. If tlsConfig is nil, an
// ephemeral self-signed certificate is generated and used instead.
func ListenQUIC(addr string, tlsConfig *tls.Config) (*Listener, error) {
	if tlsConfig == nil {
		cert, err := GenerateEphemeralCertificate(addr)
		if err != nil {
			return nil, fmt.Errorf("netutil: generate ephemeral certificate: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS13,
			NextProtos:   []string{ALPNProtocol},
		}
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("netutil: resolve %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("netutil: listen udp: %w", err)
	}

	ql, err := quic.Listen(udpConn, tlsConfig, quicConfig)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("netutil: quic listen: %w", err)
	}

	return &Listener{ql: ql}, nil
}

// Accept waits for a connection and its single bidirectional stream,
// returning a stream usable directly with wire.NewStreamTransport.
func (l *Listener) Accept(ctx context.Context) (*quic.Stream, net.Addr, error) {
	conn, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("netutil: accept connection: %w", err)
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(1, "failed to accept stream")
		return nil, nil, fmt.Errorf("netutil: accept stream: %w", err)
	}
	return stream, conn.RemoteAddr(), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ql.Close()
}

// DialQUIC opens a QUIC connection to addr and returns its single
// bidirectional stream. insecureSkipVerify trusts the host's
// self-signed certificate, matching the viewer's dev-mode config.
func DialQUIC(ctx context.Context, addr string, insecureSkipVerify bool) (*quic.Stream, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: insecureSkipVerify,
		NextProtos:         []string{ALPNProtocol},
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("netutil: dial %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(1, "failed to open stream")
		return nil, fmt.Errorf("netutil: open stream: %w", err)
	}
	return stream, nil
}

// GenerateEphemeralCertificate creates a self-signed ECDSA P-256
// certificate valid for 24 hours, with host as its Subject
// Alternative Name (IP or DNS, whichever host parses as).
func GenerateEphemeralCertificate(host string) (*tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ECDSA key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(24 * time.Hour)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"beamdesk"},
			CommonName:   "beamdesk-host",
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	hostForSAN := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostForSAN = h
	}
	if ip := net.ParseIP(hostForSAN); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{hostForSAN}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}, nil
}
