// Package runner scans many markup sources with a bounded worker pool.
//
// Every source gets its own analyzer invocation; workers share nothing but
// the read-only analyzer. Results come back in input order regardless of
// completion order.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"golang.org/x/time/rate"
)

// Scanner is satisfied by *analyzer.Analyzer.
type Scanner interface {
	Analyze(text string) *analyzer.Report
}

// Result is the outcome for one source. Err is set when the source could
// not be loaded or the run was cancelled before it started.
type Result struct {
	Source    string           `json:"source"`
	ScannedAt time.Time        `json:"scanned_at"`
	Duration  float64          `json:"duration_ms"`
	Report    *analyzer.Report `json:"report,omitempty"`
	Input     string           `json:"-"`
	Err       error            `json:"-"`
}

// OK reports whether the source was scanned.
func (r Result) OK() bool {
	return r.Err == nil && r.Report != nil
}

// ResultFunc is called once per finished source, from the worker goroutine.
type ResultFunc func(index int, result Result)

// Runner orchestrates scans with concurrency and optional rate limiting.
type Runner struct {
	Concurrency int // Maximum number of concurrent scans
	RateLimit   int // Scans started per second; zero disables pacing
}

func (r *Runner) workers() int {
	if r.Concurrency < 1 {
		return 1
	}
	return r.Concurrency
}

func (r *Runner) limiter() *rate.Limiter {
	if r.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
}

// Run scans every source and returns one result per source, in input order.
func (r *Runner) Run(ctx context.Context, sources []Source, scanner Scanner, fn ResultFunc) ([]Result, error) {
	if len(sources) == 0 {
		return nil, sharedErrors.ErrNoSources
	}

	limiter := r.limiter()
	sem := make(chan struct{}, r.workers())
	results := make([]Result, len(sources))
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Source: src.Name, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results[i] = Result{Source: src.Name, Err: err}
					return
				}
			} else if err := ctx.Err(); err != nil {
				results[i] = Result{Source: src.Name, Err: err}
				return
			}

			res := scanOne(src, scanner)
			results[i] = res
			if fn != nil {
				fn(i, res)
			}
		}(i, src)
	}

	wg.Wait()
	return results, nil
}

func scanOne(src Source, scanner Scanner) Result {
	start := time.Now()
	res := Result{Source: src.Name, ScannedAt: start.UTC()}

	text, err := src.Load()
	if err != nil {
		res.Err = err
		return res
	}
	res.Input = text
	res.Report = scanner.Analyze(text)
	res.Duration = float64(time.Since(start).Microseconds()) / 1000
	return res
}
