package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// FingerprintData contains the components used to identify a device.
// The IP address is deliberately excluded from the fingerprint itself:
// mobile networks and NAT change it between requests, which would cause
// spurious trust loss. It is carried separately for logging and the
// suspicious-login heuristic.
type FingerprintData struct {
	UserAgent     string
	AcceptHeaders string
	Timezone      string
	DeviceID      string // explicit ID supplied by mobile clients
	IPAddress     string
}

// Fingerprint is a stable device identifier. Two requests carry the same
// Fingerprint iff they present the same device ID, or (absent one) the
// same User-Agent, Accept headers and timezone. Equality is plain string
// comparison on the digest.
type Fingerprint string

// NewFingerprint derives the fingerprint from the provided data.
// An explicit device ID wins; otherwise the digest covers the
// browser-identifying headers only.
func NewFingerprint(data FingerprintData) Fingerprint {
	var combined string
	if data.DeviceID != "" {
		combined = data.DeviceID
	} else {
		combined = fmt.Sprintf("%s|%s|%s", data.UserAgent, data.AcceptHeaders, data.Timezone)
	}

	hash := sha256.Sum256([]byte(combined))
	return Fingerprint(hex.EncodeToString(hash[:]))
}

func (f Fingerprint) String() string {
	return string(f)
}

// ExtractFingerprintDataFromRequest extracts fingerprint data from an
// HTTP request.
func ExtractFingerprintDataFromRequest(r *http.Request) FingerprintData {
	acceptHeaders := r.Header.Get("Accept") + "|" +
		r.Header.Get("Accept-Language") + "|" +
		r.Header.Get("Accept-Encoding")

	return FingerprintData{
		UserAgent:     r.UserAgent(),
		AcceptHeaders: acceptHeaders,
		Timezone:      r.Header.Get("Timezone"),
		DeviceID:      r.Header.Get("X-Device-ID"),
		IPAddress:     remoteIP(r),
	}
}

// GetRequestFingerprint extracts data from a request and derives its
// fingerprint in one step.
func GetRequestFingerprint(r *http.Request) Fingerprint {
	return NewFingerprint(ExtractFingerprintDataFromRequest(r))
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
