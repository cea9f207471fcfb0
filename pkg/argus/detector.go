// Package argus watches request metadata for the fingerprints of known
// offensive tooling, like its hundred-eyed namesake.
package argus

import "strings"

// Detector decides whether a user agent belongs to a known attack tool.
type Detector interface {
	// IsSuspicious reports a match and the signature that matched.
	// The signature is for the audit trail only and must never be
	// echoed back to the client.
	IsSuspicious(userAgent string) (bool, string)
}

// DefaultSignatures are the compiled-in scanner and exploit-tool names.
// Matching is case-insensitive substring.
var DefaultSignatures = []string{
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"nessus",
	"acunetix",
	"zgrab",
	"dirbuster",
	"gobuster",
	"nuclei",
	"wpscan",
	"metasploit",
	"hydra",
	"w3af",
	"havij",
	"burpsuite",
}

// SignatureDetector matches user agents against a static signature list.
// It is pure and safe for concurrent use; the list is fixed at construction.
type SignatureDetector struct {
	signatures []string
}

// NewSignatureDetector builds a detector from the given signatures, falling
// back to DefaultSignatures when none are provided.
func NewSignatureDetector(signatures []string) *SignatureDetector {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	lowered := make([]string, 0, len(signatures))
	for _, s := range signatures {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			lowered = append(lowered, s)
		}
	}
	return &SignatureDetector{signatures: lowered}
}

// IsSuspicious scans the user agent for any known signature.
func (d *SignatureDetector) IsSuspicious(userAgent string) (bool, string) {
	ua := strings.ToLower(userAgent)
	for _, sig := range d.signatures {
		if strings.Contains(ua, sig) {
			return true, sig
		}
	}
	return false, ""
}

// NoopDetector never matches. Useful for tests and staged rollouts.
type NoopDetector struct{}

func NewNoopDetector() *NoopDetector { return &NoopDetector{} }

func (NoopDetector) IsSuspicious(string) (bool, string) { return false, "" }
