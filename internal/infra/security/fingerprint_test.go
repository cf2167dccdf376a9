package security

import (
	"net/http/httptest"
	"testing"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
)

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	safariIPadUA    = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	chromeAndroidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	edgeWindowsUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	firefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

func TestFingerprint_Deterministic(t *testing.T) {
	gen := NewFingerprintGenerator()

	first := gen.Fingerprint(chromeWindowsUA, "en-US", "gzip, deflate, br", "203.0.113.10")
	second := gen.Fingerprint(chromeWindowsUA, "en-US", "gzip, deflate, br", "203.0.113.10")

	if first != second {
		t.Fatalf("identical signals must produce identical fingerprints: %s vs %s", first, second)
	}
	if len(first) != 16 {
		t.Fatalf("expected 16 hex characters, got %d (%s)", len(first), first)
	}
}

func TestFingerprint_SensitiveToEachSignal(t *testing.T) {
	gen := NewFingerprintGenerator()
	base := gen.Fingerprint(chromeWindowsUA, "en-US", "gzip", "203.0.113.10")

	variants := []struct {
		name        string
		fingerprint string
	}{
		{"user agent", gen.Fingerprint(firefoxLinuxUA, "en-US", "gzip", "203.0.113.10")},
		{"language", gen.Fingerprint(chromeWindowsUA, "de-DE", "gzip", "203.0.113.10")},
		{"encoding", gen.Fingerprint(chromeWindowsUA, "en-US", "br", "203.0.113.10")},
		{"ip", gen.Fingerprint(chromeWindowsUA, "en-US", "gzip", "198.51.100.7")},
	}

	for _, variant := range variants {
		if variant.fingerprint == base {
			t.Fatalf("changing %s must change the fingerprint", variant.name)
		}
	}
}

func TestFingerprint_GenerateReadsRequestHeaders(t *testing.T) {
	gen := NewFingerprintGenerator()

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", chromeWindowsUA)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Accept-Encoding", "gzip")

	fromRequest := gen.Generate(r, "203.0.113.10")
	direct := gen.Fingerprint(chromeWindowsUA, "en-US", "gzip", "203.0.113.10")

	if fromRequest != direct {
		t.Fatalf("request path and direct path must agree: %s vs %s", fromRequest, direct)
	}
}

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		ua   string
		want domain.DeviceType
	}{
		{chromeWindowsUA, domain.DeviceTypeDesktop},
		{safariIPhoneUA, domain.DeviceTypeMobile},
		{chromeAndroidUA, domain.DeviceTypeMobile},
		// iPad UAs contain "Mobile" too; tablet detection must win.
		{safariIPadUA, domain.DeviceTypeTablet},
		{firefoxLinuxUA, domain.DeviceTypeDesktop},
		{"", domain.DeviceTypeDesktop},
	}

	for _, tc := range cases {
		if got := ClassifyDevice(tc.ua); got != tc.want {
			t.Fatalf("ClassifyDevice(%q) = %s, want %s", tc.ua, got, tc.want)
		}
	}
}

func TestClassifyBrowser(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		// Edge UAs contain "Chrome" and "Safari"; Edge must win.
		{edgeWindowsUA, "Edge"},
		{chromeWindowsUA, "Chrome"},
		{firefoxLinuxUA, "Firefox"},
		{safariIPhoneUA, "Safari"},
		{"", "Unknown"},
	}

	for _, tc := range cases {
		if got := ClassifyBrowser(tc.ua); got != tc.want {
			t.Fatalf("ClassifyBrowser(%q) = %s, want %s", tc.ua, got, tc.want)
		}
	}
}

func TestClassifyOS(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{chromeWindowsUA, "Windows"},
		// iPhone UAs contain "like Mac OS X"; iOS must win over MacOS.
		{safariIPhoneUA, "iOS"},
		// Android UAs contain "Linux"; Android must win.
		{chromeAndroidUA, "Android"},
		{firefoxLinuxUA, "Linux"},
		{"", "Unknown"},
	}

	for _, tc := range cases {
		if got := ClassifyOS(tc.ua); got != tc.want {
			t.Fatalf("ClassifyOS(%q) = %s, want %s", tc.ua, got, tc.want)
		}
	}
}

func TestMetadata_PopulatesAllFields(t *testing.T) {
	gen := NewFingerprintGenerator()

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", safariIPhoneUA)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Accept-Encoding", "gzip")

	meta := gen.Metadata(r, "203.0.113.10")

	if meta.IPAddress != "203.0.113.10" {
		t.Fatalf("unexpected ip: %s", meta.IPAddress)
	}
	if meta.UserAgent != safariIPhoneUA {
		t.Fatalf("unexpected user agent: %s", meta.UserAgent)
	}
	if meta.DeviceType != domain.DeviceTypeMobile {
		t.Fatalf("unexpected device type: %s", meta.DeviceType)
	}
	if meta.Browser != "Safari" || meta.OS != "iOS" {
		t.Fatalf("unexpected browser/os: %s/%s", meta.Browser, meta.OS)
	}
	if len(meta.Fingerprint) != 16 {
		t.Fatalf("unexpected fingerprint: %s", meta.Fingerprint)
	}
}
