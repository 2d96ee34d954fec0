package vexfs

import (
	"log/slog"
	"time"

	"github.com/lspecian/vexfs-sub000/blobstore"
	"github.com/lspecian/vexfs-sub000/codec"
	"github.com/lspecian/vexfs-sub000/internal/resource"
	"github.com/lspecian/vexfs-sub000/registry"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	timeout          time.Duration
	resource         resource.Config
	journalPath      string
	journalOptions   []func(*registry.JournalOptions)
	snapshotStore    blobstore.Store
	snapshotCommits  blobstore.CommitStore
}

// Option configures Client constructor behavior.
type Option func(*options)

// WithCodec configures the codec used for encoding registry snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithTimeout bounds every device call. A call that exceeds the bound
// returns ErrTimeout; the kernel may still complete it afterwards, so the
// caller must treat the operation's effect as unknown.
//
// Zero disables the bound (the default). Per-call context deadlines apply
// either way.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxInflight caps concurrent device calls. Each device call blocks an
// OS thread in the kernel, so the cap protects the runtime against a slow or
// wedged device. If n <= 0, the default of 16 applies.
func WithMaxInflight(n int64) Option {
	return func(o *options) {
		o.resource.MaxInflight = n
	}
}

// WithRateLimit caps the rate of device calls. opsPerSec 0 means unlimited
// (the default); burst 0 defaults to 1.
func WithRateLimit(opsPerSec float64, burst int) Option {
	return func(o *options) {
		o.resource.OpsPerSec = opsPerSec
		o.resource.Burst = burst
	}
}

// WithJournal persists the collection registry to an append-only journal at
// path. On construction the journal is replayed so collections survive
// restarts.
//
// Example with compression:
//
//	client, _ := vexfs.New(dev, vexfs.WithJournal("./registry.log", func(o *registry.JournalOptions) {
//	    o.Compressed = true
//	}))
func WithJournal(path string, optFns ...func(*registry.JournalOptions)) Option {
	return func(o *options) {
		o.journalPath = path
		o.journalOptions = optFns
	}
}

// WithSnapshots stores registry snapshots in the given blob store. On
// construction the latest snapshot is restored before the journal replays;
// Snapshot writes a new one and resets the journal.
//
// commits tracks which snapshot is current. Pass nil to use store's own
// commit tracking when it implements blobstore.CommitStore (the local and
// memory stores do); S3-backed stores need an explicit commit store since
// object storage has no atomic pointer swap.
func WithSnapshots(store blobstore.Store, commits blobstore.CommitStore) Option {
	return func(o *options) {
		o.snapshotStore = store
		o.snapshotCommits = commits
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vexfs.BasicMetricsCollector{}
//	client, _ := vexfs.New(dev, vexfs.WithMetricsCollector(metrics))
//	// ... use client ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vexfs.NewJSONLogger(slog.LevelInfo)
//	client, _ := vexfs.New(dev, vexfs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
