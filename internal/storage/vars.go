package storage

import (
	"errors"
	"fmt"
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// Durability controls when the committed-length checkpoint reaches stable
// storage.
type Durability int

const (
	// DurabilitySafe fsyncs both logs and persists the checkpoint after every batch.
	DurabilitySafe Durability = iota + 1
	// DurabilityFast keeps the checkpoint in memory until Commit/Close. A crash
	// loses everything written since the last persisted checkpoint.
	DurabilityFast
)

func (d Durability) String() string {
	switch d {
	case DurabilitySafe:
		return "safe"
	case DurabilityFast:
		return "fast"
	default:
		return "unknown"
	}
}

func ParseDurability(s string) (Durability, error) {
	switch s {
	case "safe", "":
		return DurabilitySafe, nil
	case "fast":
		return DurabilityFast, nil
	default:
		return 0, fmt.Errorf("invalid durability mode: %s", s)
	}
}

var (
	ErrStorageIO        = errors.New("storage: I/O error")
	ErrLineOutOfRange   = errors.New("storage: line out of range")
	ErrOffsetOutOfRange = errors.New("storage: offset out of range")
	ErrCorruptIndex     = errors.New("storage: corrupt index entry")
	ErrTornRow          = errors.New("storage: row is not terminated")
	ErrLogTooLarge      = errors.New("storage: log exceeds 32-bit index addressing")
	ErrClosed           = errors.New("storage: log is closed")
)
