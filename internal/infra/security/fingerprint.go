package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

const fingerprintLength = 16

// FingerprintGenerator derives a stable client fingerprint and coarse device
// metadata from per-request signals. Fingerprints are one-way hashes used
// only for equality comparison; they are never reversed.
type FingerprintGenerator struct{}

// NewFingerprintGenerator constructs a FingerprintGenerator.
func NewFingerprintGenerator() *FingerprintGenerator {
	return &FingerprintGenerator{}
}

// Generate hashes User-Agent, Accept-Language, Accept-Encoding, and the
// client IP into a 16-hex-character fingerprint. Identical inputs always
// yield an identical fingerprint.
func (g *FingerprintGenerator) Generate(r *http.Request, clientIP string) string {
	return g.Fingerprint(
		r.Header.Get("User-Agent"),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		clientIP,
	)
}

// Fingerprint computes the fingerprint from raw signal values.
func (g *FingerprintGenerator) Fingerprint(userAgent, acceptLanguage, acceptEncoding, clientIP string) string {
	raw := fmt.Sprintf("%s|%s|%s|%s", userAgent, acceptLanguage, acceptEncoding, clientIP)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// Metadata extracts the full session metadata value object for a request.
func (g *FingerprintGenerator) Metadata(r *http.Request, clientIP string) domain.SessionMetadata {
	ua := r.Header.Get("User-Agent")
	return domain.SessionMetadata{
		IPAddress:   clientIP,
		UserAgent:   ua,
		DeviceType:  ClassifyDevice(ua),
		Browser:     ClassifyBrowser(ua),
		OS:          ClassifyOS(ua),
		Fingerprint: g.Generate(r, clientIP),
	}
}

// ClassifyDevice maps a User-Agent to a coarse device type. Tablets are
// checked before phones because tablet UAs frequently contain "Mobile" too.
func ClassifyDevice(userAgent string) domain.DeviceType {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return domain.DeviceTypeTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return domain.DeviceTypeMobile
	default:
		return domain.DeviceTypeDesktop
	}
}

// ClassifyBrowser derives a browser label by ordered substring matching.
// Edge and Opera embed "Chrome" in their UA, and Chrome embeds "Safari",
// so specific names must be tested first.
func ClassifyBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Unknown"
	}
}

// ClassifyOS derives an operating system label. Mobile OS substrings are
// tested before desktop ones: an iPhone UA contains "like Mac OS X" and
// would otherwise be misclassified as MacOS, and Android UAs contain
// "Linux".
func ClassifyOS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac"):
		return "MacOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}
