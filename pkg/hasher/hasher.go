// Package hasher computes the digest of a single file with a fixed-size
// reusable buffer and reports at most one ETA notice for slow files.
package hasher

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jacktea/xgsum/pkg/digest"
	"github.com/jacktea/xgsum/pkg/xerrors"
)

const (
	// DefaultChunkSize is the read buffer size used when none is configured.
	DefaultChunkSize = 4 << 10
	// DefaultThreshold is how long a file must take before an ETA is reported.
	DefaultThreshold = 2 * time.Second
)

// Progress is the one-shot ETA sample reported for a slow file.
type Progress struct {
	Path      string
	Name      string
	Elapsed   time.Duration
	Processed int64
	Total     int64
	Remaining time.Duration
}

// Notifier receives progress samples. It may be called from many tasks at once.
type Notifier func(Progress)

// Options controls a Task.
type Options struct {
	FS        billy.Filesystem
	ChunkSize int
	Threshold time.Duration
	Algorithm digest.Algorithm
	Notify    Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Sum is the outcome of a successful task.
type Sum struct {
	Digest digest.Digest
	Size   int64
}

// Task hashes one file and runs once. All of its state is local to the
// goroutine running it.
type Task struct {
	path   string
	name   string
	opened string
	opts   Options

	start     time.Time
	total     int64
	processed int64
	notified  bool
}

// New prepares a task for path, filling zero options with defaults.
func New(path string, opts Options) *Task {
	opened := path
	if opts.FS == nil {
		opts.FS = osfs.New("/")
		if abs, err := filepath.Abs(path); err == nil {
			opened = abs
		}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Algorithm == "" {
		opts.Algorithm = digest.MD5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notify == nil {
		logger := opts.Logger
		opts.Notify = func(p Progress) {
			logger.Info("ETA", "file", p.Name, "eta", p.Remaining.Round(time.Millisecond))
		}
	}
	return &Task{
		path:   path,
		name:   filepath.Base(path),
		opened: opened,
		opts:   opts,
		total:  -1,
	}
}

// HashFile is shorthand for New(path, opts).Run(ctx).
func HashFile(ctx context.Context, path string, opts Options) (Sum, error) {
	return New(path, opts).Run(ctx)
}

// Run opens the file, streams it through the accumulator and returns the digest.
// Open and read failures are returned as xerrors with KindOpen and KindRead.
func (t *Task) Run(ctx context.Context) (Sum, error) {
	acc, err := digest.NewFor(t.opts.Algorithm)
	if err != nil {
		return Sum{}, err
	}
	f, err := t.opts.FS.Open(t.opened)
	if err != nil {
		return Sum{}, xerrors.Wrap(xerrors.KindOpen, "hash", t.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			t.opts.Logger.Debug("close failed", "file", t.name, "err", cerr)
		}
	}()

	if info, err := t.opts.FS.Stat(t.opened); err != nil {
		merr := xerrors.Wrap(xerrors.KindMetadata, "hash", t.path, err)
		t.opts.Logger.Debug("size unknown, ETA disabled", "file", t.name, "err", merr)
	} else {
		t.total = info.Size()
	}

	if err := t.hashStream(ctx, f, acc); err != nil {
		return Sum{}, err
	}
	return Sum{Digest: acc.Finalize(), Size: t.processed}, nil
}

func (t *Task) hashStream(ctx context.Context, r io.Reader, acc *digest.Accumulator) error {
	buf := make([]byte, t.opts.ChunkSize)
	t.start = t.opts.Now()
	for {
		if err := ctx.Err(); err != nil {
			return xerrors.Wrap(xerrors.KindCanceled, "hash", t.path, err)
		}
		n, err := r.Read(buf)
		if n > 0 {
			acc.Consume(buf[:n])
			t.processed += int64(n)
			t.maybeNotify()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Wrap(xerrors.KindRead, "hash", t.path, err)
		}
		if n == 0 {
			return nil
		}
	}
}

// maybeNotify emits the single ETA sample once the threshold has passed.
// Only the first sample past the threshold is used.
func (t *Task) maybeNotify() {
	if t.notified || t.total <= 0 {
		return
	}
	elapsed := t.opts.Now().Sub(t.start)
	if elapsed <= t.opts.Threshold {
		return
	}
	remaining, ok := estimate(elapsed, t.processed, t.total)
	if !ok {
		return
	}
	t.notified = true
	t.opts.Notify(Progress{
		Path:      t.path,
		Name:      t.name,
		Elapsed:   elapsed,
		Processed: t.processed,
		Total:     t.total,
		Remaining: remaining,
	})
}

// estimate derives the remaining time from a single throughput sample.
// Bytes beyond the reported total count as nothing left.
func estimate(elapsed time.Duration, processed, total int64) (time.Duration, bool) {
	if elapsed <= 0 || processed <= 0 {
		return 0, false
	}
	rate := float64(processed) / elapsed.Seconds()
	left := total - processed
	if left < 0 {
		left = 0
	}
	return time.Duration(float64(left) / rate * float64(time.Second)), true
}
