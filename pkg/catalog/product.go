package catalog

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"catalogfetch/pkg/errors"
	"catalogfetch/pkg/models"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
)

// payload is the subset of the product-detail document we read. Fields are
// kept raw so a field of an unexpected type degrades to null instead of
// rejecting the whole record.
type payload struct {
	ID          json.RawMessage `json:"id"`
	Name        json.RawMessage `json:"name"`
	URLKey      json.RawMessage `json:"url_key"`
	Price       json.RawMessage `json:"price"`
	Description json.RawMessage `json:"description"`
	Images      json.RawMessage `json:"images"`
}

// CleanDescription removes HTML tags and collapses whitespace. Applying it
// to its own output returns the same string.
func CleanDescription(text string) string {
	if text == "" {
		return ""
	}
	text = tagPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ParseProduct turns a 200 response body into a product record. It fails
// only when the body is not a JSON object or carries no id.
func ParseProduct(body []byte) (*models.ProductRecord, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeInvalidPayload,
			Message: "Invalid JSON payload",
			Cause:   err,
		}
	}

	id, ok := scalarString(p.ID)
	if !ok || id == "" {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeInvalidPayload,
			Message: errors.MsgMissingID,
		}
	}

	record := &models.ProductRecord{
		ID:        id,
		Name:      optionalString(p.Name),
		URLKey:    optionalString(p.URLKey),
		Price:     optionalNumber(p.Price),
		ImagesURL: imageURLs(p.Images),
		NumericID: optionalString(p.ID) == nil,
	}
	if desc := optionalString(p.Description); desc != nil {
		record.Description = CleanDescription(*desc)
	}
	return record, nil
}

// imageURLs returns base_url of each image entry that has one, in order
func imageURLs(raw json.RawMessage) []string {
	urls := []string{}
	if len(raw) == 0 {
		return urls
	}

	var images []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &images); err != nil {
		return urls
	}
	for _, img := range images {
		if u := optionalString(img["base_url"]); u != nil {
			urls = append(urls, *u)
		}
	}
	return urls
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func optionalString(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// optionalNumber accepts JSON numbers and numeric strings
func optionalNumber(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	if s := optionalString(raw); s != nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64); err == nil {
			return &f
		}
	}
	return nil
}

// scalarString renders a JSON string or number as text
func scalarString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	if s := optionalString(raw); s != nil {
		return strings.TrimSpace(*s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
