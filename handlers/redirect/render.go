package redirect

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	h "gaslink/helpers"
)

// DefaultTitle is used when a link has no title of its own.
const DefaultTitle = "Redirecting..."

//go:embed templates/*.html
var templateFS embed.FS

var (
	frameTmpl   = template.Must(template.ParseFS(templateFS, "templates/frame.html"))
	expiredTmpl = template.Must(template.ParseFS(templateFS, "templates/expired.html"))
)

type framePage struct {
	Title string
	URL   string
}

type expiredPage struct {
	RenewURL string
}

// renderOK serves a target either framed or as a 302.
func renderOK(c echo.Context, t Target) error {
	if !t.Frame {
		return c.Redirect(http.StatusFound, t.URL)
	}

	title := t.Title
	if title == "" {
		title = DefaultTitle
	}
	return renderHTML(c, http.StatusOK, frameTmpl, framePage{Title: title, URL: t.URL})
}

func renderExpired(c echo.Context, renewURL string) error {
	return renderHTML(c, http.StatusForbidden, expiredTmpl, expiredPage{RenewURL: renewURL})
}

func renderNotFound(c echo.Context) error {
	return h.JSONError(c, http.StatusNotFound, "not found")
}

func renderInternalError(c echo.Context) error {
	return h.JSONError(c, http.StatusInternalServerError, "internal server error")
}

func renderHTML(c echo.Context, code int, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.HTMLBlob(code, buf.Bytes())
}
