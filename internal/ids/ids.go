package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a random UUID for rows keyed by uuid columns.
func New() string {
	return uuid.NewString()
}

// NewSortable returns a KSUID; its string form sorts by creation time.
func NewSortable() string {
	return ksuid.New().String()
}
