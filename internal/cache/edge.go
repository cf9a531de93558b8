package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// EdgeBackend delegates caching to a reverse proxy. Get returns an include
// directive that the proxy resolves against a fulfillment endpoint, and
// flushing runs the proxy's purge command on every configured server.
type EdgeBackend struct {
	opts      options
	name      string
	route     string
	directive string
	urls      interfaces.URLGenerator
	signer    *Signer
	runner    CommandRunner
	servers   []string
	command   string
}

// EdgeConfig configures an ESI or SSI backend.
type EdgeConfig struct {
	URLs         interfaces.URLGenerator
	Signer       *Signer
	Runner       CommandRunner
	Servers      []string
	PurgeCommand string
}

// NewESIBackend emits <esi:include /> directives.
func NewESIBackend(cfg EdgeConfig, opts ...Option) *EdgeBackend {
	return newEdgeBackend("esi", RouteESI, `<esi:include src="%s" />`, cfg, opts)
}

// NewSSIBackend emits <!--# include virtual --> directives.
func NewSSIBackend(cfg EdgeConfig, opts ...Option) *EdgeBackend {
	return newEdgeBackend("ssi", RouteSSI, `<!--# include virtual="%s" -->`, cfg, opts)
}

func newEdgeBackend(name, route, directive string, cfg EdgeConfig, opts []Option) *EdgeBackend {
	b := &EdgeBackend{
		opts:      newOptions(opts),
		name:      name,
		route:     route,
		directive: directive,
		urls:      cfg.URLs,
		signer:    cfg.Signer,
		runner:    cfg.Runner,
		servers:   append([]string(nil), cfg.Servers...),
		command:   cfg.PurgeCommand,
	}
	if b.urls == nil {
		b.urls = PrefixURLs{Prefix: "/_cache"}
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.command == "" {
		b.command = "ban"
	}
	return b
}

func (b *EdgeBackend) Name() string { return b.name }

func (b *EdgeBackend) Get(_ context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	src, err := fragmentURL(b.urls, b.signer, b.route, keys)
	if err != nil {
		return nil, fmt.Errorf("cache %s: fragment url: %w", b.name, err)
	}
	return newElement(keys, fmt.Sprintf(b.directive, src), 0, nil, b.opts.now()), nil
}

// Set stores nothing; the proxy caches the fulfilled fragment.
func (b *EdgeBackend) Set(_ context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	return newElement(keys, value, ttl, contextual, b.opts.now()), nil
}

// Has is true for any complete key map: the directive is always available.
func (b *EdgeBackend) Has(_ context.Context, keys Keys) (bool, error) {
	if err := ValidateKeys(keys); err != nil {
		return false, err
	}
	return true, nil
}

func (b *EdgeBackend) Flush(ctx context.Context, keys Keys) (bool, error) {
	return b.purge(ctx, PurgeExpression(keys))
}

func (b *EdgeBackend) FlushAll(ctx context.Context) (bool, error) {
	return b.purge(ctx, PurgeExpression(nil))
}

func (*EdgeBackend) IsContextual() bool { return true }

func (b *EdgeBackend) purge(ctx context.Context, expression string) (bool, error) {
	var errs []error
	for _, server := range b.servers {
		argv := PurgeArgs(server, b.command, expression)
		runCtx, cancel := context.WithTimeout(ctx, b.opts.timeout)
		err := b.runner.Run(runCtx, argv)
		cancel()
		if err != nil {
			logging.ForContext(b.opts.logger, ctx).Warn("cache.edge.purge_failed", "backend", b.name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return false, backendError(b.name, "purge", errors.Join(errs...))
	}
	return true, nil
}
