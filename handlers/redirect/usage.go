package redirect

import (
	"time"

	"github.com/labstack/echo/v4"

	"gaslink/workers"
)

// recordVisit hands the visit to the recorder; it never waits on the writes.
func (h *Handler) recordVisit(c echo.Context, slug, linkID string, at time.Time) {
	if h.usage == nil {
		return
	}
	req := c.Request()

	v := workers.Visit{
		Slug:      slug,
		LinkID:    linkID,
		Referrer:  req.Referer(),
		UserAgent: req.UserAgent(),
		At:        at,
	}
	if h.geoHeader != "" {
		v.Country = req.Header.Get(h.geoHeader)
	}
	h.usage.Record(v)
}
