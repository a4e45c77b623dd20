package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var duplicatedPattern = regexp.MustCompile(`(?i)external_id\s+(\S+)\s+is\s+duplicated`)

// APIError is a non-2xx portal answer.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Body        string
	// DuplicateExternalID is set when the error is a recognized duplicate-order conflict.
	DuplicateExternalID string
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: strings.TrimSpace(string(raw))}
	var body ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = strings.TrimSpace(body.Code)
		apiErr.Description = strings.TrimSpace(body.text())
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("portal returned %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("portal returned %d: %s", e.StatusCode, e.Body)
}

// AsAPIError extracts the portal error from err, if any.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func parseDuplicatedExternalID(message string) (string, bool) {
	match := duplicatedPattern.FindStringSubmatch(message)
	if len(match) < 2 {
		return "", false
	}
	id := strings.Trim(match[1], `"'.,;`)
	return id, id != ""
}
