package geoclust

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fergl/geoclust/archive"
	"github.com/fergl/geoclust/blobstore"
	"github.com/fergl/geoclust/codec"
	"github.com/fergl/geoclust/kmeans"
)

type options struct {
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	store            blobstore.Store
	compression      archive.Compression

	// fetch
	httpClient      *http.Client
	apiKey          string
	requestInterval time.Duration
	maxRetries      int

	// collection
	workers       int
	timeout       time.Duration
	avgRecordSize int
	sharedBuffer  bool
	mappedBuffer  bool

	// clustering
	seed           int64
	seedSet        bool
	maxIterations  int
	threshold      float64
	clusterWorkers int
	onIteration    kmeans.IterationFunc
}

// Option configures Geoclust constructor behavior.
//
// Options exist to avoid exploding the API surface (e.g. codec-specific
// constructor variants).
type Option func(*options)

// WithCodec configures the codec used for record frames and snapshots.
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

// WithStore configures the blob store used for dataset snapshots.
// Defaults to a local store rooted at "./data".
func WithStore(s blobstore.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithCompression selects the snapshot compression. Default is zstd.
func WithCompression(c archive.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithHTTPClient configures the HTTP client used for upstream requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithAPIKey configures the upstream API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithRequestInterval configures the minimum spacing between upstream
// requests per worker.
func WithRequestInterval(d time.Duration) Option {
	return func(o *options) {
		o.requestInterval = d
	}
}

// WithMaxRetries configures the per-page retry budget.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithWorkers configures the number of parallel collection workers.
//
// The default is 1: with the default pacing the upstream budget allows
// roughly one request per interval, so extra workers mostly collect 429s.
// Raise it when the source tolerates parallel clients.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithTimeout configures the global collection timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithAvgRecordSize overrides the assumed average encoded record size used
// to size the shared buffer.
func WithAvgRecordSize(n int) Option {
	return func(o *options) {
		o.avgRecordSize = n
	}
}

// WithSharedBuffer toggles the lock-free shared collection buffer. When
// disabled, collection runs single-worker with a private slice.
func WithSharedBuffer(enabled bool) Option {
	return func(o *options) {
		o.sharedBuffer = enabled
	}
}

// WithMappedBuffer backs the shared buffer with an anonymous memory mapping
// instead of the Go heap.
func WithMappedBuffer(mapped bool) Option {
	return func(o *options) {
		o.mappedBuffer = mapped
	}
}

// WithSeed seeds k-means centroid initialization for reproducible runs.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
		o.seedSet = true
	}
}

// WithMaxIterations caps the k-means loop.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.maxIterations = n
	}
}

// WithThreshold sets the k-means convergence threshold in normalized space.
func WithThreshold(t float64) Option {
	return func(o *options) {
		o.threshold = t
	}
}

// WithClusterWorkers configures the k-means assignment parallelism.
func WithClusterWorkers(n int) Option {
	return func(o *options) {
		o.clusterWorkers = n
	}
}

// WithOnIteration registers a callback observing every k-means iteration.
func WithOnIteration(fn kmeans.IterationFunc) Option {
	return func(o *options) {
		o.onIteration = fn
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		compression:      archive.CompressionZstd,
		sharedBuffer:     true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
