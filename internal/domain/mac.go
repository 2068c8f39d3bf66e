package domain

import (
	"fmt"
	"strings"
)

// CanonicalMAC normalizes a MAC address to the canonical form used as a
// device identity key: uppercase hex pairs separated by colons
// ("AA:BB:CC:DD:EE:01"). Accepts colon, dash, and dot separated input
// as well as bare hex. Returns an error for anything that is not a
// 48-bit or 64-bit hardware address.
func CanonicalMAC(raw string) (string, error) {
	clean := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(raw)))
	if len(clean) != 12 && len(clean) != 16 {
		return "", fmt.Errorf("invalid MAC address %q", raw)
	}
	for _, c := range clean {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", fmt.Errorf("invalid MAC address %q", raw)
		}
	}

	var b strings.Builder
	b.Grow(len(clean) + len(clean)/2 - 1)
	for i := 0; i < len(clean); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(clean[i : i+2])
	}
	return b.String(), nil
}

// OUIPrefix returns the normalized 6-character OUI prefix of a MAC
// address (no separators, uppercase), or "" if the address is too short.
func OUIPrefix(mac string) string {
	clean := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac))
	if len(clean) < 6 {
		return ""
	}
	return clean[:6]
}
