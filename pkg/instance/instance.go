package instance

import "os"

// GetID returns the instance identifier from INSTANCE_ID, the hostname, or "unknown".
func GetID() string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
