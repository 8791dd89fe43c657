package validator

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// BlockedNetworks contains IP ranges that sources may not resolve to
var BlockedNetworks = []string{
	"0.0.0.0/8",      // "This" network
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private network
	"172.16.0.0/12",  // Private network
	"192.168.0.0/16", // Private network
	"169.254.0.0/16", // Link-local (cloud metadata services)
	"100.64.0.0/10",  // Carrier-grade NAT
	"::1/128",        // IPv6 localhost
	"fc00::/7",       // IPv6 unique local
	"fe80::/10",      // IPv6 link-local
}

type blockedNetwork struct {
	network *net.IPNet
	reason  string
}

var blocked = func() []blockedNetwork {
	reasons := map[string]string{
		"0.0.0.0/8":      "unspecified network not allowed",
		"127.0.0.0/8":    "localhost access not allowed",
		"::1/128":        "localhost access not allowed",
		"169.254.0.0/16": "link-local access not allowed",
		"fe80::/10":      "link-local access not allowed",
	}
	out := make([]blockedNetwork, 0, len(BlockedNetworks))
	for _, cidr := range BlockedNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad blocked network %q: %v", cidr, err))
		}
		reason, ok := reasons[cidr]
		if !ok {
			reason = "private network access not allowed"
		}
		out = append(out, blockedNetwork{network: network, reason: reason})
	}
	return out
}()

// IsBlockedIP checks if an IP address is in a blocked network range
func IsBlockedIP(ipStr string) bool {
	_, isBlocked := blockReason(net.ParseIP(ipStr))
	return isBlocked
}

func blockReason(ip net.IP) (string, bool) {
	if ip == nil {
		return "", false
	}
	for _, b := range blocked {
		if b.network.Contains(ip) {
			return b.reason, true
		}
	}
	return "", false
}

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

// validateHTTPURI rejects http(s) URIs whose host resolves into a blocked
// network.
func validateHTTPURI(ctx context.Context, uri string, lookup LookupFunc) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid URI: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("expected http or https scheme")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URI has no host")
	}

	var ips []net.IP
	if ip := net.ParseIP(hostname); ip != nil {
		ips = []net.IP{ip}
	} else {
		ips, err = lookup(ctx, hostname)
		if err != nil {
			return fmt.Errorf("failed to resolve hostname: %w", err)
		}
	}

	for _, ip := range ips {
		if reason, isBlocked := blockReason(ip); isBlocked {
			return fmt.Errorf("access denied: %s resolves to %s (%s)", hostname, ip, reason)
		}
	}

	return nil
}
