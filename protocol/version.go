package protocol

import (
	"fmt"
)

// ProtocolVersionLength is the size of the ProtocolVersion message.
const ProtocolVersionLength = 12

// ProtocolVersion is the version exchanged as the very first message in each
// direction, "RFB xxx.yyy\n" on the wire.
type ProtocolVersion struct {
	Major, Minor int
}

var (
	Version33 = ProtocolVersion{3, 3}
	Version37 = ProtocolVersion{3, 7}
	Version38 = ProtocolVersion{3, 8}

	// SupportedVersions lists every version the handshake understands, lowest
	// first.
	SupportedVersions = []ProtocolVersion{Version33, Version37, Version38}
)

// ParseProtocolVersion parses the 12 byte ProtocolVersion message.
func ParseProtocolVersion(b []byte) (ProtocolVersion, error) {
	var v ProtocolVersion

	if len(b) != ProtocolVersionLength {
		return v, fmt.Errorf("Failed to parse %q: %w", string(b), ErrMalformedVersion)
	}

	if string(b[:4]) != "RFB " || b[7] != '.' || b[11] != '\n' {
		return v, fmt.Errorf("Failed to parse %q: %w", string(b), ErrMalformedVersion)
	}

	major, ok := parseDigits(b[4:7])
	if !ok {
		return v, fmt.Errorf("Failed to parse %q: %w", string(b), ErrMalformedVersion)
	}

	minor, ok := parseDigits(b[8:11])
	if !ok {
		return v, fmt.Errorf("Failed to parse %q: %w", string(b), ErrMalformedVersion)
	}

	return ProtocolVersion{Major: major, Minor: minor}, nil
}

// parseDigits decodes a run of ASCII digits. Signs and spaces are rejected.
func parseDigits(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}

		n = n*10 + int(c-'0')
	}

	return n, true
}

// ParseVersionString accepts the short "3.8" form used in configuration.
func ParseVersionString(s string) (ProtocolVersion, error) {
	var v ProtocolVersion

	if _, err := fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor); err != nil {
		return v, fmt.Errorf("Failed to parse %q: %w", s, ErrMalformedVersion)
	}

	if !v.Supported() {
		return v, fmt.Errorf("%s: %w", v, ErrUnsupportedVersion)
	}

	return v, nil
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than o.
func (v ProtocolVersion) Compare(o ProtocolVersion) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether v is o or newer.
func (v ProtocolVersion) AtLeast(o ProtocolVersion) bool {
	return v.Compare(o) >= 0
}

// Supported reports whether v is one of SupportedVersions.
func (v ProtocolVersion) Supported() bool {
	for _, s := range SupportedVersions {
		if v == s {
			return true
		}
	}

	return false
}

// Lowest returns the older of v and o.
func (v ProtocolVersion) Lowest(o ProtocolVersion) ProtocolVersion {
	if v.Compare(o) <= 0 {
		return v
	}

	return o
}

func (v ProtocolVersion) Marshal() ([]byte, error) {
	b := []byte(fmt.Sprintf("RFB %03d.%03d\n", v.Major, v.Minor))
	if len(b) != ProtocolVersionLength {
		return nil, fmt.Errorf("Failed to marshal %s: %w", v, ErrMalformedVersion)
	}

	return b, nil
}
