package slug

import (
	"net"
	"strings"
)

// DefaultDenylist holds platform-assigned host fragments that never carry a
// tenant subdomain.
var DefaultDenylist = []string{"localhost", "workers.dev", "pages.dev", "vercel.app"}

// Resolver extracts the tenant slug from an inbound request.
type Resolver struct {
	baseDomain string
	denylist   []string
}

// NewResolver builds a Resolver. baseDomain may be empty, in which case the
// leftmost label of any host with three or more labels is the tenant.
func NewResolver(baseDomain string, denylist []string) *Resolver {
	deny := make([]string, 0, len(denylist))
	for _, d := range denylist {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			deny = append(deny, d)
		}
	}
	return &Resolver{
		baseDomain: strings.Trim(strings.ToLower(baseDomain), "."),
		denylist:   deny,
	}
}

// FromRequest returns the slug named by host or, failing that, by the last
// non-empty path segment. Reserved names yield no slug.
func (r *Resolver) FromRequest(host, path string) (string, bool) {
	if label := r.subdomain(host); label != "" && !IsReserved(label) {
		return label, true
	}

	seg := lastSegment(path)
	if seg == "" || IsReserved(seg) {
		return "", false
	}
	return seg, true
}

func (r *Resolver) subdomain(host string) string {
	host = normalizeHost(host)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	for _, d := range r.denylist {
		if strings.Contains(host, d) {
			return ""
		}
	}

	if r.baseDomain != "" {
		rest, ok := strings.CutSuffix(host, "."+r.baseDomain)
		if !ok || rest == "" {
			return ""
		}
		label, _, _ := strings.Cut(rest, ".")
		return label
	}

	// Without a base domain, a bare root like example.com carries no tenant.
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return labels[0]
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

func lastSegment(path string) string {
	segs := strings.Split(path, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return segs[i]
		}
	}
	return ""
}
