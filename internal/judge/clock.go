package judge

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock supplies creation timestamps in epoch milliseconds.
type Clock interface {
	NowMs() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) NowMs() int64 { return f() }

// SystemClock reads wall time.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().UnixMilli() })

// IDGenerator supplies surrogate ids. They never feed a hash.
type IDGenerator interface {
	// NewID returns prefix + "_" + 24 hex characters.
	NewID(prefix string) string
	NewRunID() string
}

// UUIDGenerator derives ids from random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:24]
}

func (UUIDGenerator) NewRunID() string {
	return uuid.NewString()
}
