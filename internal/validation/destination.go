package validation

import (
	"fmt"
	"net"
	"net/url"
)

// Resolver is the address lookup used by destination checks. Tests swap in
// a canned resolver; production uses the system resolver.
type Resolver func(host string) ([]net.IP, error)

// SystemResolver resolves via the default system resolver
func SystemResolver(host string) ([]net.IP, error) {
	return net.LookupIP(host)
}

// CheckDestination resolves a webhook URL's host and rejects targets inside
// private, loopback, or link-local ranges. It must run immediately before
// every outbound attempt; DNS answers change between attempts.
func CheckDestination(rawURL string, resolve Resolver) error {
	if !ValidateURL(rawURL) {
		return fmt.Errorf("invalid destination URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid destination URL")
	}

	host := parsed.Hostname()
	ips, err := resolve(host)
	if err != nil {
		return fmt.Errorf("destination %s did not resolve: %w", host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("destination %s did not resolve", host)
	}

	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return fmt.Errorf("destination %s: %w", host, err)
		}
	}
	return nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("resolves to loopback address %s", ip)
	case ip.IsPrivate():
		return fmt.Errorf("resolves to private address %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("resolves to link-local address %s", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("resolves to unspecified address %s", ip)
	}
	return nil
}
