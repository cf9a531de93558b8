package cache

import (
	"net/http"
	"time"

	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// DefaultTimeout bounds every network round trip of a backend.
const DefaultTimeout = 2 * time.Second

type options struct {
	now     func() time.Time
	logger  interfaces.Logger
	timeout time.Duration
	client  *http.Client
}

// Option configures a backend.
type Option func(*options)

func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(o *options) {
		o.logger = logging.Ensure(logger)
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHTTPClient sets the client used for peer purges.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		logger:  logging.NoOp(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: o.timeout}
	}
	return o
}
