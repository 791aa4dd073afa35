package scheduler

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// statusBoard renders one line per worker plus a summary line, overwriting
// the previous frame in place via cursor-up escapes. Generalized from
// distri's internal/batch/batch.go refreshStatus/updateStatus, which drove
// a fixed-size []string under one mutex; this keeps the same approach but
// sizes the slice to the scheduler's worker count rather than a global.
type statusBoard struct {
	enabled bool

	mu         sync.Mutex
	lines      []string // lines[0] is the summary; lines[1:] are per-worker
	lastRender time.Time
}

func newStatusBoard(workers int) *statusBoard {
	return &statusBoard{
		enabled: isatty.IsTerminal(os.Stdout.Fd()),
		lines:   make([]string, workers+1),
	}
}

func (b *statusBoard) setSummary(s string)       { b.set(0, s) }
func (b *statusBoard) setWorker(i int, s string) { b.set(i+1, s) }

func (b *statusBoard) set(idx int, newLine string) {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if diff := len(b.lines[idx]) - len(newLine); diff > 0 {
		newLine += strings.Repeat(" ", diff) // overwrite stale characters
	}
	b.lines[idx] = newLine
	if time.Since(b.lastRender) < 100*time.Millisecond {
		return // avoid slowing the build down with excessive redraws
	}
	b.renderLocked()
}

func (b *statusBoard) renderLocked() {
	b.lastRender = time.Now()
	for _, line := range b.lines {
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(b.lines)) // restore cursor position
}

func (b *statusBoard) finish() {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for range b.lines {
		fmt.Println()
	}
}
