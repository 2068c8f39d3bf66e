package enrich

import (
	"context"
	"net"
	"strings"
)

// reverseLookup resolves an address to its PTR hostname, or "" when
// the lookup fails or yields nothing.
func reverseLookup(ctx context.Context, ip string) string {
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}
