package helpers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONSuccess writes data with code, wrapped as {"message", "data"} when a
// message is given. Nothing to say means 204.
func JSONSuccess(c echo.Context, code int, data any, message string) error {
	switch {
	case data == nil && message == "":
		return c.NoContent(http.StatusNoContent)
	case message == "":
		return c.JSON(code, data)
	case data == nil:
		return c.JSON(code, map[string]string{"message": message})
	default:
		return c.JSON(code, map[string]any{"message": message, "data": data})
	}
}

// JSONError writes {"error":"<text>"}. Bodies never carry internal detail;
// callers pass the public text, and an empty value falls back to the status
// text for code.
func JSONError(c echo.Context, code int, err any) error {
	return c.JSON(code, map[string]string{"error": errorText(code, err)})
}

func errorText(code int, err any) string {
	var msg string
	switch v := err.(type) {
	case nil:
	case string:
		msg = v
	case error:
		msg = v.Error()
	default:
		msg = fmt.Sprintf("%v", v)
	}
	if msg == "" {
		return http.StatusText(code)
	}
	return msg
}
