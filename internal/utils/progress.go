package utils

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress is an entry counter drawn as an mpb bar when out is a terminal.
// Otherwise every method is a no-op.
type Progress struct {
	container *mpb.Progress
	bar       *mpb.Bar
	out       *os.File

	mu          sync.Mutex
	description string
}

var descLength = 24

// NewProgress creates a progress bar for total entries on out
func NewProgress(out *os.File, total int, enabled bool) *Progress {
	p := &Progress{out: out}
	if !enabled || total <= 0 || !isTerminal(out) {
		return p
	}

	fmt.Fprintln(out)

	p.container = mpb.New(
		mpb.WithOutput(out),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)

	p.bar = p.container.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return p.label()
			}, decor.WC{W: descLength, C: decor.DindentRight}),
			decor.Name("  "),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Name(" "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)

	return p
}

func (p *Progress) label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.description) > descLength {
		return ".." + p.description[len(p.description)-descLength+2:]
	}
	return p.description
}

// Enabled reports whether a bar is being drawn
func (p *Progress) Enabled() bool {
	return p.bar != nil
}

// Update moves the bar to current and shows description next to it. It
// matches export.ProgressCallback once total is bound.
func (p *Progress) Update(current int, total int, description string) {
	if p.bar == nil {
		return
	}

	p.mu.Lock()
	p.description = description
	p.mu.Unlock()

	p.bar.SetTotal(int64(total), false)
	p.bar.SetCurrent(int64(current))
}

// Finish completes the bar and waits for the final render
func (p *Progress) Finish() {
	if p.container == nil {
		return
	}

	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
	p.container.Wait()

	fmt.Fprintln(p.out)
}

// isTerminal checks if out is a terminal (TTY)
func isTerminal(out *os.File) bool {
	return out != nil && term.IsTerminal(int(out.Fd()))
}
