package utils

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/iancoleman/strcase"
)

// BodyParser decodes the JSON body into out. camelCase keys are folded to
// snake_case first; when both spellings are present the snake_case one wins.
// Unknown fields are rejected.
func BodyParser(c *fiber.Ctx, out interface{}) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return NewError(fiber.StatusBadRequest, "Request body is required")
	}

	// Numbers stay json.Number so large ids survive the round trip.
	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return WrapError(err, fiber.StatusBadRequest, "Invalid request format")
	}
	if dec.InputOffset() != int64(len(body)) {
		return NewError(fiber.StatusBadRequest, "Invalid request format")
	}
	normalized, err := json.Marshal(NormalizeKeys(raw))
	if err != nil {
		return WrapError(err, fiber.StatusBadRequest, "Invalid request format")
	}
	return StrictBodyParser(normalized, out)
}

// StrictBodyParser decodes data and returns an error if it contains unknown fields.
func StrictBodyParser(data []byte, out interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return WrapError(err, fiber.StatusBadRequest, "Invalid request format")
	}
	return nil
}

// NormalizeKeys rewrites every object key in v to snake_case, recursively.
func NormalizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			snake := strcase.ToSnake(k)
			if _, exists := out[snake]; exists && snake != k {
				continue
			}
			out[snake] = NormalizeKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = NormalizeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
