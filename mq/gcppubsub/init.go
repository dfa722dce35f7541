package gcppubsub

import (
	"os"
)

// GetGCPProjectID returns GCP_PROJECT_ID, or "" when it is unset.
func GetGCPProjectID() string {
	return os.Getenv("GCP_PROJECT_ID")
}
