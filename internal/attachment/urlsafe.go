package attachment

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// ValidateExternalURL checks that raw is an http(s) URL without embedded
// credentials whose host is not local, internal or a private address.
// It returns the normalized URL string.
func ValidateExternalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid URL", ErrUnsafeURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: only http(s) URLs are allowed", ErrUnsafeURL)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: URL credentials are not allowed", ErrUnsafeURL)
	}
	if forbiddenHost(u.Hostname()) {
		return "", fmt.Errorf("%w: host %q is not allowed", ErrUnsafeURL, u.Hostname())
	}
	return u.String(), nil
}

func forbiddenHost(host string) bool {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if h == "" {
		return true
	}
	if h == "localhost" ||
		strings.HasSuffix(h, ".localhost") ||
		strings.HasSuffix(h, ".local") ||
		strings.HasSuffix(h, ".internal") {
		return true
	}

	addr, err := netip.ParseAddr(h)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
