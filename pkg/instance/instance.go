package instance

import (
	"os"
	"strings"
)

// EnvInstanceID names the variable that pins the worker identity, e.g. the pod name.
const EnvInstanceID = "POSYNC_INSTANCE_ID"

// GetID returns the worker instance identifier, falling back to the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
