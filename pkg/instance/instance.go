// Package instance names the running process for logs and lock ownership.
package instance

import (
	"fmt"
	"os"
	"strings"
)

const idEnv = "SHOP_WORKER_ID"

// GetID prefers SHOP_WORKER_ID and otherwise combines the hostname with the
// pid, so two replicas on one host still hold distinct lock owners.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(idEnv)); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
