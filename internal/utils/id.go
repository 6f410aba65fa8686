package utils

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

var entropy = &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)}

// NewULID returns a time-ordered identifier for a stream session or sender run
func NewULID() (ulid.ULID, error) {
	return NewULIDAt(time.Now())
}

func NewULIDAt(t time.Time) (ulid.ULID, error) {
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return ulid.ULID{}, err
	}
	return id, nil
}
