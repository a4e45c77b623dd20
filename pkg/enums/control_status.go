package enums

import "fmt"

// ControlStatus is the last known submission outcome stored in the control table.
type ControlStatus string

const (
	ControlStatusPosted    ControlStatus = "POSTED"
	ControlStatusError     ControlStatus = "ERROR"
	ControlStatusDuplicate ControlStatus = "DUPLICATE"
)

var validControlStatuses = []ControlStatus{
	ControlStatusPosted,
	ControlStatusError,
	ControlStatusDuplicate,
}

// String implements fmt.Stringer.
func (s ControlStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known control status.
func (s ControlStatus) IsValid() bool {
	for _, candidate := range validControlStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseControlStatus converts raw input into ControlStatus.
func ParseControlStatus(value string) (ControlStatus, error) {
	for _, candidate := range validControlStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid control status %q", value)
}
