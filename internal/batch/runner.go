package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"rastersalvage/internal/salvage"
	"rastersalvage/internal/storage"

	"golang.org/x/sync/errgroup"
)

type salvager interface {
	Run(ctx context.Context, bucket, key string) (salvage.Result, error)
}

// ErrDestinationConflict marks a key skipped because an earlier key in the
// same batch writes to the same destination.
var ErrDestinationConflict = errors.New("destination conflict")

type Summary struct {
	Objects  int              `json:"objects"`
	Copied   int              `json:"copied"`
	Trimmed  int              `json:"trimmed"`
	Rejected int              `json:"rejected"`
	Failed   int              `json:"failed"`
	Results  []salvage.Result `json:"results"`
}

// Runner salvages many keys of one bucket. Each key is an independent run;
// a failing key does not stop the others.
type Runner struct {
	salvager    salvager
	concurrency int
	logger      *log.Logger
}

func NewRunner(s salvager, concurrency int, logger *log.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{salvager: s, concurrency: concurrency, logger: logger}
}

// Run returns the joined errors of every failed key. Results are in key order.
func (r *Runner) Run(ctx context.Context, bucket string, keys []string) (Summary, error) {
	if r.salvager == nil {
		return Summary{}, fmt.Errorf("salvager is nil")
	}

	r.logger.Printf("[batch] starting %d objects in %s (concurrency=%d)", len(keys), bucket, r.concurrency)

	results := make([]salvage.Result, len(keys))
	errs := make([]error, len(keys))
	skip := r.claimDestinations(bucket, keys, results, errs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	var logMu sync.Mutex
	for i, key := range keys {
		if skip[i] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", key, err)
				return nil
			}
			res, err := r.salvager.Run(gctx, bucket, key)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", key, err)
			}
			logMu.Lock()
			r.logger.Printf("[batch] [%d/%d] %s: outcome=%q err=%v", i+1, len(keys), key, res.Outcome, err)
			logMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Objects: len(keys), Results: results}
	var joined error
	for i, err := range errs {
		if err != nil {
			if errors.Is(err, salvage.ErrPolicyRejected) {
				summary.Rejected++
			} else {
				summary.Failed++
			}
			joined = errors.Join(joined, err)
			continue
		}
		switch results[i].Outcome {
		case salvage.OutcomeCopied:
			summary.Copied++
		case salvage.OutcomeTrimmed:
			summary.Trimmed++
		}
	}

	r.logger.Printf("[batch] done: objects=%d copied=%d trimmed=%d rejected=%d failed=%d",
		summary.Objects, summary.Copied, summary.Trimmed, summary.Rejected, summary.Failed)
	return summary, joined
}

// claimDestinations keeps the first key of each destination name and marks
// the later ones as failed without running them.
func (r *Runner) claimDestinations(bucket string, keys []string, results []salvage.Result, errs []error) []bool {
	skip := make([]bool, len(keys))
	owner := make(map[string]string, len(keys))
	for i, key := range keys {
		base, err := salvage.ObjectBase(key)
		if err != nil {
			continue
		}
		first, taken := owner[base]
		if !taken {
			owner[base] = key
			continue
		}
		skip[i] = true
		results[i] = salvage.Result{Source: storage.Object{Bucket: bucket, Key: key}}
		errs[i] = fmt.Errorf("%s: %w: destination name %q already used by %s", key, ErrDestinationConflict, base, first)
		r.logger.Printf("[batch] skipping %s: destination name %q already used by %s", key, base, first)
	}
	return skip
}
