//go:build !windows

// Package stderr captures output that C libraries (ALSA, oto backends) write
// straight to file descriptor 2 and forwards it to the logger, keeping the
// interactive player output readable.
package stderr

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Capture redirects fd 2 into a pipe until Stop is called.
type Capture struct {
	orig     int
	r, w     *os.File
	done     chan struct{}
	stopOnce sync.Once
}

// Start redirects fd 2 and logs every non-empty captured line at warn
// level. On error nothing is redirected and the program can continue.
func Start(log *zap.Logger) (*Capture, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	orig, err := syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	if err := syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		syscall.Close(orig)
		r.Close()
		w.Close()
		return nil, err
	}

	c := &Capture{orig: orig, r: r, w: w, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				log.Warn("native stderr", zap.String("line", line))
			}
		}
	}()
	return c, nil
}

// WriteOriginal writes msg to the terminal, bypassing the capture.
func (c *Capture) WriteOriginal(msg string) {
	_, _ = syscall.Write(c.orig, []byte(msg))
}

// Stop restores fd 2 and waits until captured lines are logged.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		_ = syscall.Dup2(c.orig, int(os.Stderr.Fd()))
		_ = syscall.Close(c.orig)
		c.w.Close()
		<-c.done
		c.r.Close()
	})
}
