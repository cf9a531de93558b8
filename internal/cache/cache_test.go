package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
	"github.com/goliatone/go-pagecms/pkg/testsupport"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, argv []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, argv)
	return r.err
}

func fullKeys() Keys {
	return Keys{KeyBlockID: 5, KeyPageID: 9, KeyManager: "page", KeyUpdatedAt: 100}
}

func newDocumentBackend(t *testing.T, clock *fakeClock) *DocumentBackend {
	t.Helper()
	db := testsupport.NewBunDB(t)
	backend := NewDocumentBackend(db, WithClock(clock.Now))
	if err := backend.CreateTable(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return backend
}

func allBackends(t *testing.T) map[string]Backend {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_000, 0)}
	disk, err := OpenDiskBackend(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("open disk backend: %v", err)
	}
	t.Cleanup(func() { _ = disk.Close() })
	// ValidateKeys runs before any round trip, so no server is needed.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Backend{
		"noop":     NewNoopBackend(),
		"memory":   NewMemoryBackend(nil, ""),
		"redis":    NewRedisBackend(client, "test:", false),
		"document": newDocumentBackend(t, clock),
		"disk":     disk,
		"esi":      NewESIBackend(EdgeConfig{}),
		"ssi":      NewSSIBackend(EdgeConfig{Signer: NewSigner("secret")}),
		"js":       NewJSBackend(false, nil, nil),
	}
}

func TestEveryBackendRejectsIncompleteKeys(t *testing.T) {
	ctx := context.Background()
	for name, backend := range allBackends(t) {
		for _, missing := range RequiredKeys {
			keys := fullKeys()
			delete(keys, missing)

			if _, err := backend.Get(ctx, keys); !errors.Is(err, ErrKeysIncomplete) {
				t.Fatalf("%s: Get without %s: expected ErrKeysIncomplete, got %v", name, missing, err)
			}
			if _, err := backend.Set(ctx, keys, "X", time.Minute, nil); !errors.Is(err, ErrKeysIncomplete) {
				t.Fatalf("%s: Set without %s: expected ErrKeysIncomplete, got %v", name, missing, err)
			}
			if _, err := backend.Has(ctx, keys); !errors.Is(err, ErrKeysIncomplete) {
				t.Fatalf("%s: Has without %s: expected ErrKeysIncomplete, got %v", name, missing, err)
			}
		}
	}
}

func TestValidateKeysReportsEveryMissingKey(t *testing.T) {
	err := ValidateKeys(Keys{KeyBlockID: 1, KeyManager: " "})
	var missing *MissingKeysError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeysError, got %v", err)
	}
	want := []string{KeyPageID, KeyManager, KeyUpdatedAt}
	if strings.Join(missing.Missing, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, missing.Missing)
	}
}

func TestHashKeysIgnoresOrderAndRepresentation(t *testing.T) {
	a := Keys{KeyBlockID: 5, KeyPageID: "9", KeyManager: "page", KeyUpdatedAt: int64(100)}
	b := Keys{KeyUpdatedAt: "100", KeyManager: "page", KeyPageID: 9, KeyBlockID: "5"}
	if HashKeys(a) != HashKeys(b) {
		t.Fatalf("expected equal hashes")
	}
	b[KeyUpdatedAt] = 101
	if HashKeys(a) == HashKeys(b) {
		t.Fatalf("expected updated_at to change the hash")
	}
}

func TestElementIsExpired(t *testing.T) {
	created := time.Unix(100, 0)
	element := &Element{CreatedAt: created, TTL: 60 * time.Second}
	if element.IsExpired(created.Add(60 * time.Second)) {
		t.Fatalf("expected element to be live at the boundary")
	}
	if !element.IsExpired(created.Add(61 * time.Second)) {
		t.Fatalf("expected element to expire after ttl")
	}
	forever := &Element{CreatedAt: created}
	if forever.IsExpired(created.Add(24 * time.Hour)) {
		t.Fatalf("expected zero ttl to never expire")
	}
}

func TestDocumentBackendExpiresWithClock(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(100, 0)}
	backend := newDocumentBackend(t, clock)

	if _, err := backend.Set(ctx, fullKeys(), "X", 60*time.Second, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	element, err := backend.Get(ctx, fullKeys())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if element.Value != "X" {
		t.Fatalf("expected X, got %q", element.Value)
	}
	clock.Advance(61 * time.Second)
	if _, err := backend.Get(ctx, fullKeys()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}
}

func TestDocumentBackendOverwritesAndFlushesByPartialKeys(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(100, 0)}
	backend := newDocumentBackend(t, clock)

	other := fullKeys()
	other[KeyBlockID] = 6
	for _, keys := range []Keys{fullKeys(), other} {
		if _, err := backend.Set(ctx, keys, "old", 0, nil); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if _, err := backend.Set(ctx, fullKeys(), "new", 0, nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if element, _ := backend.Get(ctx, fullKeys()); element == nil || element.Value != "new" {
		t.Fatalf("expected overwritten value, got %+v", element)
	}

	if ok, err := backend.Flush(ctx, Keys{KeyBlockID: 5}); err != nil || !ok {
		t.Fatalf("flush: %v %v", ok, err)
	}
	if has, _ := backend.Has(ctx, fullKeys()); has {
		t.Fatalf("expected block 5 to be flushed")
	}
	if has, _ := backend.Has(ctx, other); !has {
		t.Fatalf("expected block 6 to survive")
	}
	if _, err := backend.FlushAll(ctx); err != nil {
		t.Fatalf("flush all: %v", err)
	}
	if has, _ := backend.Has(ctx, other); has {
		t.Fatalf("expected flush all to remove block 6")
	}
}

func TestMemoryBackendRoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(100, 0)}
	backend := NewMemoryBackend(nil, "", WithClock(clock.Now))

	if _, err := backend.Set(ctx, fullKeys(), "X", time.Minute, Keys{"user": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	stringly := Keys{KeyBlockID: "5", KeyPageID: "9", KeyManager: "page", KeyUpdatedAt: "100"}
	element, err := backend.Get(ctx, stringly)
	if err != nil || element.Value != "X" {
		t.Fatalf("expected X for equivalent keys, got %v %v", element, err)
	}
	clock.Advance(2 * time.Minute)
	if has, err := backend.Has(ctx, fullKeys()); err != nil || has {
		t.Fatalf("expected expired element, got %v %v", has, err)
	}
	if backend.Len() != 0 {
		t.Fatalf("expected expired element to be evicted")
	}
}

// hookClock runs onNext once, on the next reading of the clock.
type hookClock struct {
	fakeClock
	onNext func()
}

func (c *hookClock) Now() time.Time {
	if hook := c.onNext; hook != nil {
		c.onNext = nil
		hook()
	}
	return c.fakeClock.Now()
}

func TestMemoryBackendKeepsEntryReplacedWhileExpiring(t *testing.T) {
	ctx := context.Background()
	clock := &hookClock{fakeClock: fakeClock{now: time.Unix(100, 0)}}
	backend := NewMemoryBackend(nil, "", WithClock(clock.Now))

	if _, err := backend.Set(ctx, fullKeys(), "old", time.Minute, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(2 * time.Minute)
	clock.onNext = func() {
		if _, err := backend.Set(ctx, fullKeys(), "fresh", time.Minute, nil); err != nil {
			t.Errorf("concurrent set: %v", err)
		}
	}
	if _, err := backend.Get(ctx, fullKeys()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected the expired read to miss, got %v", err)
	}
	element, err := backend.Get(ctx, fullKeys())
	if err != nil || element.Value != "fresh" {
		t.Fatalf("expected fresh entry to survive eviction, got %v %v", element, err)
	}
}

func TestDocumentBackendServesAtExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(100, 0)}
	backend := newDocumentBackend(t, clock)

	element, err := backend.Set(ctx, fullKeys(), "X", 60*time.Second, nil)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(60 * time.Second)
	if element.IsExpired(clock.Now()) {
		t.Fatalf("expected element live at the boundary")
	}
	if _, err := backend.Get(ctx, fullKeys()); err != nil {
		t.Fatalf("expected document backend to agree at the boundary, got %v", err)
	}
	clock.Advance(time.Second)
	if _, err := backend.Get(ctx, fullKeys()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss one second later, got %v", err)
	}
}

func TestMemoryBackendFlushAllPurgesPeers(t *testing.T) {
	var hits atomic.Int32
	var tokens sync.Map
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		tokens.Store(r.URL.Query().Get("token"), true)
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	backend := NewMemoryBackend([]string{peer.URL + "/_cache/apc", peer.URL + "/_cache/apc?x=1"}, "s3cret")
	ctx := context.Background()
	_, _ = backend.Set(ctx, fullKeys(), "X", 0, nil)

	ok, err := backend.FlushAll(ctx)
	if err != nil || !ok {
		t.Fatalf("flush all: %v %v", ok, err)
	}
	if backend.Len() != 0 {
		t.Fatalf("expected local flush")
	}
	if hits.Load() != 2 {
		t.Fatalf("expected two peer purges, got %d", hits.Load())
	}
	if _, ok := tokens.Load("s3cret"); !ok {
		t.Fatalf("expected token on purge request")
	}
}

func TestMemoryBackendReportsPeerFailure(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer peer.Close()

	backend := NewMemoryBackend([]string{peer.URL}, "bad")
	ok, err := backend.FlushAll(context.Background())
	if ok || !errors.Is(err, domain.ErrCacheBackend) {
		t.Fatalf("expected backend failure, got %v %v", ok, err)
	}
}

func TestDiskBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leveldb")
	backend, err := OpenDiskBackend(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := backend.Set(ctx, fullKeys(), "X", 0, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := OpenDiskBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	element, err := reopened.Get(ctx, fullKeys())
	if err != nil || element.Value != "X" {
		t.Fatalf("expected persisted element, got %v %v", element, err)
	}
	if _, err := reopened.Flush(ctx, Keys{KeyPageID: 9}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := reopened.Get(ctx, fullKeys()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after flush, got %v", err)
	}
}

func TestRedisBackend(t *testing.T) {
	rawURL := os.Getenv("PAGECMS_TEST_REDIS_URL")
	if rawURL == "" {
		t.Skip("PAGECMS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	backend, err := NewRedisBackendFromURL(rawURL, "pagecms-test:", false)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer backend.Close()
	if _, err := backend.FlushAll(ctx); err != nil {
		t.Fatalf("flush all: %v", err)
	}
	if _, err := backend.Set(ctx, fullKeys(), "X", time.Minute, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	element, err := backend.Get(ctx, fullKeys())
	if err != nil || element.Value != "X" {
		t.Fatalf("expected X, got %v %v", element, err)
	}
	if _, err := backend.Flush(ctx, Keys{KeyManager: "page"}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if has, _ := backend.Has(ctx, fullKeys()); has {
		t.Fatalf("expected partial flush to remove element")
	}
}

func TestNoopBackendNeverServes(t *testing.T) {
	ctx := context.Background()
	backend := NewNoopBackend()
	if has, err := backend.Has(ctx, fullKeys()); err != nil || has {
		t.Fatalf("expected no value, got %v %v", has, err)
	}
	if _, err := backend.Get(ctx, fullKeys()); !errors.Is(err, ErrNoopRead) {
		t.Fatalf("expected ErrNoopRead, got %v", err)
	}
}

func TestESIBackendReturnsSignedDirective(t *testing.T) {
	signer := NewSigner("secret")
	backend := NewESIBackend(EdgeConfig{Signer: signer})
	element, err := backend.Get(context.Background(), fullKeys())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(element.Value, `<esi:include src="/_cache/esi?`) {
		t.Fatalf("unexpected directive %q", element.Value)
	}
	for _, fragment := range []string{"block_id=5", "page_id=9", "manager=page", "updated_at=100", "token=" + signer.Sign(fullKeys())} {
		if !strings.Contains(element.Value, fragment) {
			t.Fatalf("expected %q in %q", fragment, element.Value)
		}
	}
	if !backend.IsContextual() {
		t.Fatalf("expected esi to be contextual")
	}
	if has, _ := backend.Has(context.Background(), fullKeys()); !has {
		t.Fatalf("expected esi to always have a directive")
	}
}

func TestSSIBackendDirective(t *testing.T) {
	backend := NewSSIBackend(EdgeConfig{URLs: PrefixURLs{Prefix: "/fragments"}, Signer: NewSigner("secret")})
	element, err := backend.Get(context.Background(), fullKeys())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(element.Value, `<!--# include virtual="/fragments/ssi?`) || !strings.Contains(element.Value, "token=") {
		t.Fatalf("unexpected directive %q", element.Value)
	}
}

func TestEdgeBackendPurgesEveryServer(t *testing.T) {
	runner := &recordingRunner{}
	backend := NewESIBackend(EdgeConfig{
		Runner:       runner,
		PurgeCommand: "ban",
		Servers: []string{
			`varnishadm -T 127.0.0.1:2000 {{ COMMAND }} "{{ EXPRESSION }}"`,
			`varnishadm -T 127.0.0.1:2001 {{ COMMAND }} "{{ EXPRESSION }}"`,
		},
	})
	if ok, err := backend.Flush(context.Background(), Keys{KeyBlockID: 5}); err != nil || !ok {
		t.Fatalf("flush: %v %v", ok, err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected one purge per server, got %d", len(runner.calls))
	}
	argv := runner.calls[0]
	want := []string{"varnishadm", "-T", "127.0.0.1:2000", "ban", "obj.http.x-pagecms-cache-block-id ~ 5"}
	if strings.Join(argv, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected argv %q", argv)
	}

	runner.err = errors.New("connection refused")
	if ok, err := backend.FlushAll(context.Background()); ok || !errors.Is(err, domain.ErrCacheBackend) {
		t.Fatalf("expected purge failure, got %v %v", ok, err)
	}
}

func TestJSBackendSnippets(t *testing.T) {
	ctx := context.Background()
	async, err := NewJSBackend(false, nil, nil).Get(ctx, fullKeys())
	if err != nil {
		t.Fatalf("async get: %v", err)
	}
	if !strings.Contains(async.Value, `<div id="block-cms-5"></div>`) || !strings.Contains(async.Value, "/_cache/js-async?") {
		t.Fatalf("unexpected async snippet %q", async.Value)
	}
	if !strings.Contains(async.Value, "JSON.parse") {
		t.Fatalf("expected async snippet to parse json")
	}
	synced, err := NewJSBackend(true, nil, nil).Get(ctx, fullKeys())
	if err != nil {
		t.Fatalf("sync get: %v", err)
	}
	if !strings.Contains(synced.Value, "/_cache/js-sync?") || !strings.Contains(synced.Value, ", false)") {
		t.Fatalf("unexpected sync snippet %q", synced.Value)
	}
	if NewJSBackend(true, nil, nil).IsContextual() {
		t.Fatalf("expected js backend to be non contextual")
	}
}

func TestSigner(t *testing.T) {
	signer := NewSigner("secret")
	token := signer.Sign(fullKeys())
	if !signer.Verify(fullKeys(), token) {
		t.Fatalf("expected token to verify")
	}
	tampered := fullKeys()
	tampered[KeyBlockID] = 6
	if signer.Verify(tampered, token) || signer.Verify(fullKeys(), "zz") {
		t.Fatalf("expected tampered keys and bad tokens to fail")
	}
	if !signer.MatchesSecret("secret") || signer.MatchesSecret("nope") {
		t.Fatalf("unexpected secret comparison")
	}
	open := NewSigner("")
	if open.Sign(fullKeys()) != "" || !open.Verify(fullKeys(), "") || open.MatchesSecret("") {
		t.Fatalf("unexpected behaviour without secret")
	}
}

func TestPurgeArgs(t *testing.T) {
	argv := PurgeArgs(`nginx-purge --server 10.0.0.1 {{ COMMAND }} '{{ EXPRESSION }}'`, "purge", "a ~ 1 && b ~ 2")
	want := []string{"nginx-purge", "--server", "10.0.0.1", "purge", "a ~ 1 && b ~ 2"}
	if strings.Join(argv, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected argv %q", argv)
	}
}

func TestRouterSelectsBackendPerType(t *testing.T) {
	memory := NewMemoryBackend(nil, "")
	noop := NewNoopBackend()
	router, err := NewRouter("memory", map[string]Backend{"memory": memory, "noop": noop}, map[string]string{"rss": "noop"})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	if router.ForType("rss") != Backend(noop) || router.ForType("text") != Backend(memory) {
		t.Fatalf("unexpected routing")
	}
	if got, ok := router.Memory(); !ok || got != memory {
		t.Fatalf("expected memory backend lookup")
	}
	if _, err := router.Backend("esi"); !errors.Is(err, ErrBackendUnknown) {
		t.Fatalf("expected unknown backend, got %v", err)
	}
	if _, err := NewRouter("memory", map[string]Backend{"memory": memory}, map[string]string{"rss": "esi"}); !errors.Is(err, ErrBackendUnknown) {
		t.Fatalf("expected unknown type backend, got %v", err)
	}

	ctx := context.Background()
	_, _ = memory.Set(ctx, fullKeys(), "X", 0, nil)
	if err := router.Flush(ctx, "", Keys{KeyPageID: 9}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if memory.Len() != 0 {
		t.Fatalf("expected router flush to reach memory backend")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig().Cache
	cfg.Token = "secret"
	cfg.BlockBackends = map[string]string{"rss": "ESI", "menu": "js", "text": "disk"}
	cfg.Disk.Path = filepath.Join(t.TempDir(), "leveldb")
	router, err := NewFromConfig(cfg, Dependencies{URLs: PrefixURLs{Prefix: "/_cache"}})
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}
	defer router.Close()
	if router.ForType("rss").Name() != "esi" || router.ForType("menu").Name() != "js_async" {
		t.Fatalf("unexpected routing for configured types")
	}
	if router.ForType("text").Name() != "disk" || router.ForType("anything").Name() != "memory" {
		t.Fatalf("unexpected routing for default types")
	}

	cfg.Enabled = false
	disabled, err := NewFromConfig(cfg, Dependencies{})
	if err != nil {
		t.Fatalf("disabled: %v", err)
	}
	if disabled.ForType("rss").Name() != "noop" {
		t.Fatalf("expected noop when caching is disabled")
	}

	cfg.Enabled = true
	cfg.Default = "document"
	cfg.BlockBackends = nil
	if _, err := NewFromConfig(cfg, Dependencies{}); err == nil {
		t.Fatalf("expected document backend without db to fail")
	}
}
