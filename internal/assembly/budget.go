package assembly

import (
	"context"
	"io"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// budget tracks uncompressed injected bytes for one assembly. limit 0 means
// unlimited.
type budget struct {
	limit int64
	used  int64
}

func newBudget(limit int64) *budget {
	return &budget{limit: limit}
}

func (b *budget) unlimited() bool { return b.limit <= 0 }

// admit fails when n more bytes cannot fit.
func (b *budget) admit(n int64) error {
	if b.unlimited() || b.used+n <= b.limit {
		return nil
	}
	return derrors.SizeExceeded(b.limit).Build()
}

// guardedReader charges every byte read against the budget and stops on
// cancellation. Reads are clipped to one byte past the remaining budget so
// an oversized module is detected without reading it whole.
type guardedReader struct {
	ctx    context.Context
	r      io.Reader
	budget *budget
}

func (g *guardedReader) Read(p []byte) (int, error) {
	if err := g.ctx.Err(); err != nil {
		return 0, derrors.FromContext(err)
	}
	if !g.budget.unlimited() {
		if remaining := g.budget.limit - g.budget.used; int64(len(p)) > remaining+1 {
			p = p[:remaining+1]
		}
	}

	n, err := g.r.Read(p)
	g.budget.used += int64(n)
	if !g.budget.unlimited() && g.budget.used > g.budget.limit {
		return n, derrors.SizeExceeded(g.budget.limit).Build()
	}
	return n, err
}
