package salvage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"rastersalvage/internal/raster"
	"rastersalvage/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const DefaultKeyPrefix = "trimmed/"

type Outcome string

const (
	OutcomeCopied  Outcome = "copied"
	OutcomeTrimmed Outcome = "trimmed"
)

// Options tunes a run. The zero value of every field falls back to its
// default in New.
type Options struct {
	ScratchDir       string
	KeepScratch      bool
	Tolerance        float64
	ProbeSuffix      string
	TrimSuffix       string
	CleanKeyPrefix   string
	SalvageKeyPrefix string
}

func DefaultOptions() Options {
	return Options{
		ScratchDir:       os.TempDir(),
		Tolerance:        DefaultTolerance,
		ProbeSuffix:      DefaultProbeSuffix,
		TrimSuffix:       DefaultTrimSuffix,
		CleanKeyPrefix:   DefaultKeyPrefix,
		SalvageKeyPrefix: DefaultKeyPrefix,
	}
}

// Journal records finished runs. runErr is nil for successful runs.
type Journal interface {
	RecordRun(ctx context.Context, res Result, runErr error) error
}

type Deps struct {
	Store   storage.BlobStore
	Reader  raster.Reader
	Codec   raster.Codec
	Journal Journal
	Logger  *log.Logger
}

// Result describes one finished (or aborted) run.
type Result struct {
	RunID       string         `json:"run_id"`
	Source      storage.Object `json:"source"`
	Destination storage.Object `json:"destination"`
	Outcome     Outcome        `json:"outcome,omitempty"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	FailingRow  *int           `json:"failing_row,omitempty"`
	KeptRows    int            `json:"kept_rows,omitempty"`
	Bytes       int64          `json:"bytes,omitempty"`
	Digest      string         `json:"digest,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	Duration    time.Duration  `json:"duration"`
}

type Orchestrator struct {
	store   storage.BlobStore
	reader  raster.Reader
	prober  *Prober
	policy  Policy
	trimmer *Trimmer
	journal Journal
	opts    Options
	logger  *log.Logger
	newID   func() string
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("blob store is nil")
	}
	if deps.Reader == nil {
		return nil, fmt.Errorf("raster reader is nil")
	}
	if deps.Codec == nil {
		return nil, fmt.Errorf("raster codec is nil")
	}
	defaults := DefaultOptions()
	if opts.ScratchDir == "" {
		opts.ScratchDir = defaults.ScratchDir
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.CleanKeyPrefix == "" {
		opts.CleanKeyPrefix = defaults.CleanKeyPrefix
	}
	if opts.SalvageKeyPrefix == "" {
		opts.SalvageKeyPrefix = defaults.SalvageKeyPrefix
	}
	policy, err := NewPolicy(opts.Tolerance)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		store:   deps.Store,
		reader:  deps.Reader,
		prober:  NewProber(deps.Codec, opts.ProbeSuffix, logger),
		policy:  policy,
		trimmer: NewTrimmer(deps.Codec, deps.Reader, opts.TrimSuffix, logger),
		journal: deps.Journal,
		opts:    opts,
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}, nil
}

// Run salvages bucket/key: fetch, open, probe, then either copy the
// original unchanged or trim it and upload the result. Every failure
// aborts the run before anything is written to the destination.
func (o *Orchestrator) Run(ctx context.Context, bucket, key string) (res Result, err error) {
	res = Result{
		RunID:     o.newID(),
		Source:    storage.Object{Bucket: bucket, Key: key},
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		if err != nil {
			o.logger.Printf("[salvage] run=%s %s failed after %s: %v", res.RunID, res.Source, res.Duration.Round(time.Millisecond), err)
		} else {
			o.logger.Printf("[salvage] run=%s %s done in %s: outcome=%s dest=%s",
				res.RunID, res.Source, res.Duration.Round(time.Millisecond), res.Outcome, res.Destination)
		}
		o.record(ctx, res, err)
	}()

	base, err := ObjectBase(key)
	if err != nil {
		return res, err
	}

	workDir := filepath.Join(o.opts.ScratchDir, res.RunID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return res, &raster.ResourceError{Op: "create scratch dir", Path: workDir, Err: err}
	}
	if !o.opts.KeepScratch {
		defer func() {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				o.logger.Printf("[salvage] run=%s remove scratch %s: %v", res.RunID, workDir, rmErr)
			}
		}()
	}

	localPath := filepath.Join(workDir, base)
	if err := o.fetch(ctx, res.Source, localPath); err != nil {
		return res, err
	}
	o.logger.Printf("[salvage] run=%s state=fetched path=%s", res.RunID, localPath)

	h, err := o.reader.Open(ctx, localPath)
	if err != nil {
		if !errors.Is(err, raster.ErrResource) {
			err = &raster.ResourceError{Op: "open", Path: localPath, Err: err}
		}
		return res, err
	}
	res.Width, res.Height = h.Dimensions()
	o.logger.Printf("[salvage] run=%s state=opened width=%d height=%d", res.RunID, res.Width, res.Height)

	probe, err := o.prober.Probe(ctx, h)
	if err != nil {
		return res, err
	}
	o.logger.Printf("[salvage] run=%s state=probed clean=%t", res.RunID, probe.Clean())

	if probe.Clean() {
		dstKey := o.opts.CleanKeyPrefix + base
		if err := o.store.Copy(ctx, bucket, key, dstKey); err != nil {
			return res, fmt.Errorf("%w: copy %s to %s: %w", ErrStorage, res.Source, dstKey, err)
		}
		res.Outcome = OutcomeCopied
		res.Destination = storage.Object{Bucket: bucket, Key: dstKey}
		res.KeptRows = res.Height
		return res, nil
	}

	failingRow := probe.FailingRow
	res.FailingRow = &failingRow
	decision, err := o.policy.Decide(probe.FailingRow, res.Height, res.Width)
	if err != nil {
		var rej *PolicyRejection
		if errors.As(err, &rej) {
			rej.Diagnostic = probe.Diagnostic
		}
		return res, err
	}

	trimmed, err := o.trimmer.Trim(ctx, h, decision.UntilRow, decision.Width)
	if err != nil {
		return res, err
	}
	res.KeptRows = trimmed.Height

	dstKey := o.opts.SalvageKeyPrefix + filepath.Base(trimmed.Path)
	n, digest, err := o.upload(ctx, bucket, dstKey, trimmed.Path)
	if err != nil {
		return res, err
	}
	res.Outcome = OutcomeTrimmed
	res.Destination = storage.Object{Bucket: bucket, Key: dstKey}
	res.Bytes = n
	res.Digest = digest
	return res, nil
}

func (o *Orchestrator) fetch(ctx context.Context, src storage.Object, dst string) error {
	rd, err := o.store.Get(ctx, src.Bucket, src.Key)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %w", ErrStorage, src, err)
	}
	defer rd.Close()

	f, err := os.Create(dst)
	if err != nil {
		return &raster.ResourceError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(f, rd); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: download %s: %w", ErrStorage, src, err)
	}
	if err := f.Close(); err != nil {
		return &raster.ResourceError{Op: "write", Path: dst, Err: err}
	}
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, bucket, key, path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", &raster.ResourceError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return 0, "", err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", &raster.ResourceError{Op: "read", Path: path, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, "", &raster.ResourceError{Op: "seek", Path: path, Err: err}
	}
	digest := "blake2b-256:" + hex.EncodeToString(h.Sum(nil))

	o.logger.Printf("[salvage] uploading %s (%d bytes) to %s/%s", path, n, bucket, key)
	if err := o.store.Put(ctx, bucket, key, f, n); err != nil {
		return 0, "", fmt.Errorf("%w: upload %s/%s: %w", ErrStorage, bucket, key, err)
	}
	return n, digest, nil
}

func (o *Orchestrator) record(ctx context.Context, res Result, runErr error) {
	if o.journal == nil {
		return
	}
	if err := o.journal.RecordRun(context.WithoutCancel(ctx), res, runErr); err != nil {
		o.logger.Printf("[salvage] run=%s record journal: %v", res.RunID, err)
	}
}
