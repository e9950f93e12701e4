package card

import (
	"net"
	"strings"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// NetworkMode is the addressing side used to resolve card URLs.
type NetworkMode string

const (
	NetworkAuto NetworkMode = "auto"
	NetworkLAN  NetworkMode = "lan"
	NetworkWAN  NetworkMode = "wan"
)

// ParseNetworkMode accepts auto, lan and wan. Empty means auto.
func ParseNetworkMode(s string) (NetworkMode, error) {
	switch NetworkMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NetworkAuto:
		return NetworkAuto, nil
	case NetworkLAN:
		return NetworkLAN, nil
	case NetworkWAN:
		return NetworkWAN, nil
	}
	return "", errors.Newf(errors.ErrValidation, "Invalid networkModePreference: %s", s)
}

// ResolveNetworkMode turns a preference into a concrete lan or wan mode.
// auto resolves to lan for loopback, private and link-local client addresses.
func ResolveNetworkMode(pref NetworkMode, clientIP string) NetworkMode {
	if pref == NetworkLAN || pref == NetworkWAN {
		return pref
	}
	if IsLANAddress(clientIP) {
		return NetworkLAN
	}
	return NetworkWAN
}

// ClientIP returns the first X-Forwarded-For entry, or remoteAddr without its port.
func ClientIP(xForwardedFor, remoteAddr string) string {
	if xff := strings.TrimSpace(xForwardedFor); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// IsLANAddress reports whether ip is loopback, private or link-local.
func IsLANAddress(ip string) bool {
	v := strings.TrimSpace(ip)
	if v == "" {
		return false
	}
	if strings.EqualFold(v, "localhost") {
		return true
	}
	v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	v = strings.TrimPrefix(v, "::ffff:")

	addr := net.ParseIP(v)
	if addr == nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
