// Package instance names the running replica so log lines and lock owners
// can be traced back to a process.
package instance

import (
	"os"

	"github.com/angelmondragon/scrapfield-backend/pkg/env"
)

const EnvInstanceID = "SCRAPFIELD_INSTANCE_ID"

// ID returns SCRAPFIELD_INSTANCE_ID, the hostname, or kind-0 when neither is available.
func ID(kind string) string {
	if id := env.Get(EnvInstanceID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return kind + "@" + host
	}
	return kind + "-0"
}
