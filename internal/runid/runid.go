// Package runid generates the unique identifier assigned to each pipeline
// invocation, used to name its report directory and tag every row it
// writes.
package runid

import "github.com/google/uuid"

// New returns a fresh run identifier.
func New() string {
	return uuid.NewString()
}
