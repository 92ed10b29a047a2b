package instance

import "os"

// GetID identifies the running process in logs: the platform dyno or pod
// name when present, otherwise "local".
func GetID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
