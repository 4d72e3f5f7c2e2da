//go:build windows

package stderr

import (
	"os"

	"go.uber.org/zap"
)

// Capture is a no-op on Windows, where fd redirection is not supported.
type Capture struct{}

func Start(_ *zap.Logger) (*Capture, error) {
	return &Capture{}, nil
}

func (c *Capture) WriteOriginal(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

func (c *Capture) Stop() {}
