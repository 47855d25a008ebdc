// Package delivery decides whether a destination is served as a redirect or
// embedded in a frame.
package delivery

import (
	"net/url"
	"strings"
)

// Mode is a link's configured delivery mode.
type Mode string

const (
	Auto   Mode = "auto"
	Frame  Mode = "frame"
	Direct Mode = "direct"
)

// DefaultFrameHosts are destinations that refuse to work outside a frame.
var DefaultFrameHosts = []string{"script.google.com"}

// ParseMode maps a stored value onto a Mode. The legacy value "iframe" reads
// as Frame; anything unknown reads as Auto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "frame", "iframe":
		return Frame
	case "direct":
		return Direct
	default:
		return Auto
	}
}

// Policy holds the host list that makes Auto mode embed.
type Policy struct {
	hosts []string
}

func NewPolicy(hosts []string) Policy {
	p := Policy{hosts: make([]string, 0, len(hosts))}
	for _, h := range hosts {
		if h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), "."); h != "" {
			p.hosts = append(p.hosts, h)
		}
	}
	return p
}

// Embed reports whether destination is served framed under mode.
func (p Policy) Embed(mode Mode, destination string) bool {
	switch mode {
	case Frame:
		return true
	case Direct:
		return false
	default:
		return p.matches(destination)
	}
}

// matches is true when the destination host equals a frame host or is one of
// its subdomains. Query strings and paths never count.
func (p Policy) matches(destination string) bool {
	u, err := url.Parse(destination)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range p.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
