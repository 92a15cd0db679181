package middleware

import (
	"encoding/json"
	"html"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"
)

// SanitizeInput strips markup from every top-level string field of a JSON body
// except the ones named in skip.
func SanitizeInput(skip ...string) fiber.Handler {
	policy := bluemonday.StrictPolicy()
	skipped := make(map[string]struct{}, len(skip))
	for _, key := range skip {
		skipped[key] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		default:
			return c.Next()
		}

		if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
			return c.Next()
		}

		raw := c.Body()
		if len(raw) == 0 {
			return c.Next()
		}

		var body map[string]interface{}
		if err := json.Unmarshal(raw, &body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed JSON")
		}

		for key, value := range body {
			if _, ok := skipped[key]; ok {
				continue
			}
			if str, ok := value.(string); ok {
				body[key] = stripMarkup(policy, str)
			}
		}

		cleaned, err := json.Marshal(body)
		if err != nil {
			return err
		}
		c.Request().SetBody(cleaned)

		return c.Next()
	}
}

// stripMarkup removes tags but keeps plain text as typed, so "Rock & Roll"
// is stored without entities. Entity-encoded markup is decoded and stripped
// again until the text is stable.
func stripMarkup(policy *bluemonday.Policy, value string) string {
	for i := 0; i < 4; i++ {
		clean := html.UnescapeString(policy.Sanitize(value))
		if clean == value {
			return clean
		}
		value = clean
	}
	return policy.Sanitize(value)
}
