package enrich

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed oui_database.json
var ouiData []byte

// ouiEntry mirrors the maclookup.app export format.
type ouiEntry struct {
	MACPrefix  string `json:"macPrefix"`
	VendorName string `json:"vendorName"`
}

// OUIDB maps normalized MAC prefixes to vendor names. Prefixes are
// uppercase hex with separators stripped; standard OUI blocks are 6
// characters, MA-M and MA-S registrations run longer.
type OUIDB struct {
	prefixes map[string]string
}

// LoadOUIDB parses the embedded vendor database.
func LoadOUIDB() (*OUIDB, error) {
	var entries []ouiEntry
	if err := json.Unmarshal(ouiData, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse OUI database: %w", err)
	}

	prefixes := make(map[string]string, len(entries))
	for _, entry := range entries {
		prefix := normalizePrefix(entry.MACPrefix)
		if prefix == "" || entry.VendorName == "" {
			continue
		}
		prefixes[prefix] = entry.VendorName
	}
	return &OUIDB{prefixes: prefixes}, nil
}

// Len returns the number of registered prefixes.
func (db *OUIDB) Len() int {
	return len(db.prefixes)
}

// Lookup returns the vendor for a MAC address, or "" when unknown.
// The 24-bit OUI is tried first, then the longer MA-M and MA-S block
// lengths.
func (db *OUIDB) Lookup(mac string) string {
	clean := normalizePrefix(mac)
	if len(clean) < 6 {
		return ""
	}

	if vendor, ok := db.prefixes[clean[:6]]; ok {
		return vendor
	}
	for _, length := range []int{7, 8, 9} {
		if len(clean) < length {
			break
		}
		if vendor, ok := db.prefixes[clean[:length]]; ok {
			return vendor
		}
	}
	return ""
}

func normalizePrefix(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer(":", "", "-", "", ".", "").Replace(s)
	return s
}
