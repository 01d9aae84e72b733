// Package tlsprobe fetches the presented certificate for an https
// target. It is deliberately forgiving: the handshake accepts any chain
// so the engine can record and alert on invalid certificates, and
// validity is decided by an explicit verification afterwards.
package tlsprobe

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"net"
	"net/url"
	"strings"
	"time"
)

// Info is one certificate observation. A nil *Info from Fetch means
// "unknown for this cycle" (non-https URL, connect or handshake failure).
type Info struct {
	Valid       bool
	NotBefore   time.Time
	NotAfter    time.Time
	IssuerCN    string
	SubjectCN   string
	Fingerprint string // SHA-256, uppercase hex, colon separated
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) *Info
}

type TLSFetcher struct {
	Timeout time.Duration
}

func NewTLSFetcher(timeout time.Duration) *TLSFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TLSFetcher{Timeout: timeout}
}

func (f *TLSFetcher) Fetch(ctx context.Context, rawURL string) *Info {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return nil
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	dialer := &tls.Dialer{
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: true, // validity decided below
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return nil
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]

	return &Info{
		Valid:       verify(state, u.Hostname()),
		NotBefore:   leaf.NotBefore,
		NotAfter:    leaf.NotAfter,
		IssuerCN:    leaf.Issuer.CommonName,
		SubjectCN:   leaf.Subject.CommonName,
		Fingerprint: fingerprint(leaf.Raw),
	}
}

func verify(state tls.ConnectionState, host string) bool {
	leaf := state.PeerCertificates[0]
	inter := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		inter.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		DNSName:       host,
		Intermediates: inter,
	})
	return err == nil
}

func fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	hexed := strings.ToUpper(hex.EncodeToString(sum[:]))
	parts := make([]string, 0, len(hexed)/2)
	for i := 0; i < len(hexed); i += 2 {
		parts = append(parts, hexed[i:i+2])
	}
	return strings.Join(parts, ":")
}
