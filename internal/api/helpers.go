package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

const maxBodyBytes = 4 << 20

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeNoModel(c *echo.Context) error {
	return writeError(c, http.StatusServiceUnavailable, "no_model_loaded", "no model loaded", "", "no_model_loaded")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// decodeJSON reads a JSON body. An empty body decodes to the zero value.
func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if r == nil {
		return out, nil
	}
	b, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return out, newInvalidRequest(fmt.Sprintf("read body: %v", err))
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, newInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return out, nil
}

func sessionIDParam(c *echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", newInvalidRequest("session id is required")
	}
	return id, nil
}
