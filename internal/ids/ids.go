package ids

import "github.com/segmentio/ksuid"

// New returns a new K-sortable unique ID string.
func New() string {
	return ksuid.New().String()
}
