package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/statuspulse/statuspulse/agent/internal/config"
)

// Certificate states reported in CertStatus.Status.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// expiringWithin is how close to NotAfter a certificate is reported as expiring.
const expiringWithin = 30 * 24 * time.Hour

const dialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate presented by a source endpoint.
type CertStatus struct {
	SourceID string
	Endpoint string
	AuthType string
	Status   string
	Issuer   string
	NotAfter time.Time
	DaysLeft int
}

// Check dials the TLS endpoint for the given source and returns a CertStatus
// describing the leaf certificate.
//
// Returns nil for non-HTTPS endpoints, which have no certificate to inspect.
// Uses a 10-second dial timeout so a slow host does not block the caller.
func Check(ctx context.Context, src config.Source, now time.Time) *CertStatus {
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{
		SourceID: src.ID,
		Endpoint: src.Endpoint,
		AuthType: src.Auth.Mode,
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	left := leaf.NotAfter.Sub(now)

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))
	cs.Status = classify(left)
	return cs
}

func classify(left time.Duration) string {
	switch {
	case left <= 0:
		return StatusExpired
	case left <= expiringWithin:
		return StatusExpiring
	default:
		return StatusValid
	}
}

// CheckAll runs Check for every source and returns the statuses of the
// HTTPS ones, in source order.
func CheckAll(ctx context.Context, sources []config.Source, now time.Time) []CertStatus {
	var out []CertStatus
	for _, src := range sources {
		if cs := Check(ctx, src, now); cs != nil {
			out = append(out, *cs)
		}
	}
	return out
}
