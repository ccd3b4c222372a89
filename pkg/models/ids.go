package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewCorrelationID generates a ULID-based identifier used to tie together the
// log lines of one processed event or injection request.
func NewCorrelationID() string {
	id, _ := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	return "evt-" + id.String()
}
