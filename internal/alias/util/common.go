package util

import (
	"io"
	"log/slog"
)

// CloseFunc closes c and logs instead of returning the error. Use it in
// defers on read paths where there is nothing better to do with the error.
func CloseFunc(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("util:: close failed", "err", err)
	}
}
