package redirect

import (
	"time"

	"gaslink/delivery"
	"gaslink/store"
)

// Status is the outcome of a resolution.
type Status int

const (
	StatusNotFound Status = iota
	StatusExpired
	StatusOK
)

func (s Status) String() string {
	switch s {
	case StatusExpired:
		return "expired"
	case StatusOK:
		return "ok"
	default:
		return "not_found"
	}
}

// Target is what an OK decision serves.
type Target struct {
	URL    string
	Title  string
	LinkID string
	Frame  bool
}

// Decision is the pure result of Decide. Target is only set for StatusOK.
type Decision struct {
	Status Status
	Target Target
}

// Decide maps a lookup onto a response. It does no I/O.
//
// Cache hits are served as-is: the owner gate is only evaluated when the
// store is read, so an expiry takes effect once the entry ages out.
func Decide(l Lookup, now time.Time, policy delivery.Policy) Decision {
	switch v := l.(type) {
	case Hit:
		return Decision{Status: StatusOK, Target: Target{
			URL:    v.Entry.URL,
			Title:  v.Entry.Title,
			LinkID: v.Entry.LinkID,
			Frame:  v.Entry.Frame,
		}}
	case Miss:
		if expired(v.Gate, now) {
			return Decision{Status: StatusExpired}
		}
		mode := delivery.ParseMode(v.Link.DeliveryMode)
		return Decision{Status: StatusOK, Target: Target{
			URL:    v.Link.DestinationURL,
			Title:  v.Link.Title.String,
			LinkID: v.Link.ID,
			Frame:  policy.Embed(mode, v.Link.DestinationURL),
		}}
	default:
		return Decision{Status: StatusNotFound}
	}
}

// expired is true for a paid tier whose grace window has closed. A missing
// owner row, the free tier and an unset grace_until never gate.
func expired(g *store.SubscriptionGate, now time.Time) bool {
	if g == nil || g.Tier == "free" {
		return false
	}
	grace := g.GraceUntil.Int64
	if !g.GraceUntil.Valid || grace <= 0 {
		return false
	}
	return now.UnixMilli() > grace
}
