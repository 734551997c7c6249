// Package envelope renders the uniform JSON body returned by every API route:
// {success, data?, message?, error?}.
package envelope

import (
	"github.com/labstack/echo/v4"
)

// Response is the uniform API response body.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK writes a successful response with the given status code.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

// OKMessage writes a successful response carrying a message alongside data.
func OKMessage(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, Response{Success: true, Data: data, Message: message})
}

// Fail writes an error response.
func Fail(c echo.Context, status int, message, errText string) error {
	return c.JSON(status, Response{Success: false, Message: message, Error: errText})
}
