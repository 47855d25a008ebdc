package helpers

import (
	"fmt"
	"strings"
)

// TenantURL is the public address of slug. With no base domain configured
// the slug is addressed by path on the given fallback host.
func TenantURL(baseDomain, fallbackHost, slug string) string {
	if base := strings.Trim(baseDomain, "."); base != "" {
		return fmt.Sprintf("https://%s.%s", slug, base)
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(fallbackHost, "/"), slug)
}
