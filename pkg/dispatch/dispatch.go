// Package dispatch runs one hashing task per input file and collects the
// results in input order.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacktea/xgsum/pkg/digest"
	"github.com/jacktea/xgsum/pkg/hasher"
	"github.com/jacktea/xgsum/pkg/xerrors"
)

// Job identifies one input file by its position in the input list.
type Job struct {
	Index int
	Path  string
}

// Name returns the base name used when reporting the job.
func (j Job) Name() string { return filepath.Base(j.Path) }

// Result pairs a job with its digest or failure.
type Result struct {
	Job
	Algorithm digest.Algorithm
	Digest    digest.Digest
	Size      int64
	Elapsed   time.Duration
	Err       error
}

// OK reports whether the job produced a digest.
func (r Result) OK() bool { return r.Err == nil }

// Options configures Run.
type Options struct {
	// Workers bounds concurrent tasks. Zero runs one goroutine per job.
	Workers int
	Task    hasher.Options
	Logger  *slog.Logger
}

// Jobs numbers paths in input order.
func Jobs(paths []string) []Job {
	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = Job{Index: i, Path: p}
	}
	return jobs
}

// Run hashes every path and blocks until all tasks finish. The returned slice
// has one entry per path, in input order, regardless of completion order.
// A failed task never stops the others.
func Run(ctx context.Context, paths []string, opts Options) []Result {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Task.Logger == nil {
		opts.Task.Logger = opts.Logger
	}
	if opts.Task.Algorithm == "" {
		opts.Task.Algorithm = digest.MD5
	}
	jobs := Jobs(paths)
	results := make([]Result, len(jobs))

	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			// each goroutine writes only its own slot
			results[job.Index] = runJob(ctx, job, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runJob(ctx context.Context, job Job, opts Options) (res Result) {
	res = Result{Job: job, Algorithm: opts.Task.Algorithm}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Digest = nil
			res.Err = xerrors.Wrap(xerrors.KindInternal, "dispatch", job.Path, fmt.Errorf("panic: %v", r))
		}
		res.Elapsed = time.Since(start)
	}()

	sum, err := hasher.HashFile(ctx, job.Path, opts.Task)
	if err != nil {
		res.Err = err
		return res
	}
	res.Digest = sum.Digest
	res.Size = sum.Size
	opts.Logger.Debug("hashed", "file", job.Name(), "bytes", sum.Size, "elapsed", time.Since(start))
	return res
}

// Failed counts results carrying an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
