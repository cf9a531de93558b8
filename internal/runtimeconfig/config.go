package runtimeconfig

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrSiteStrategyUnknown      = errors.New("pagecms config: site selection strategy is invalid")
	ErrEditorPermissionRequired = errors.New("pagecms config: editor permission is required")
	ErrSessionKeyRequired       = errors.New("pagecms config: editor session key is required")
	ErrDefaultTemplateRequired  = errors.New("pagecms config: default template code is required")
	ErrErrorPageRouteInvalid    = errors.New("pagecms config: error page route must start with _page_internal_")
	ErrDecorationPatternInvalid = errors.New("pagecms config: decoration pattern does not compile")
	ErrSnapshotCodecUnknown     = errors.New("pagecms config: snapshot codec is invalid")
	ErrSnapshotKeepInvalid      = errors.New("pagecms config: snapshot keep count must be zero or positive")
	ErrCacheBackendUnknown      = errors.New("pagecms config: cache backend is invalid")
	ErrCacheTokenRequired       = errors.New("pagecms config: cache token is required for ssi and apc flush")
	ErrCacheRedisURLRequired    = errors.New("pagecms config: redis url is required when the redis backend is enabled")
	ErrCacheDiskPathRequired    = errors.New("pagecms config: disk path is required when the disk backend is enabled")
	ErrLoggingProviderUnknown   = errors.New("pagecms config: logging provider is invalid")
	ErrLoggingLevelInvalid      = errors.New("pagecms config: logging level is invalid")
	ErrLoggingFormatInvalid     = errors.New("pagecms config: logging format is invalid")
	ErrStorageDriverUnknown     = errors.New("pagecms config: storage driver is invalid")
	ErrStorageDSNRequired       = errors.New("pagecms config: storage dsn is required for sql drivers")
)

// Site selection strategies.
const (
	StrategyHost               = "host"
	StrategyHostWithLocale     = "host_with_locale"
	StrategyHostWithPath       = "host_with_path"
	StrategyHostPathWithLocale = "host_with_path_and_locale"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Snapshot codecs.
const (
	CodecTyped = "typed"
	CodecMap   = "map"
)

// Cache backend codes.
const (
	BackendNoop     = "noop"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDocument = "document"
	BackendDisk     = "disk"
	BackendESI      = "esi"
	BackendSSI      = "ssi"
	BackendJS       = "js"
)

// Config aggregates runtime options for the page pipeline.
type Config struct {
	Debug      bool             `yaml:"debug" env:"DEBUG"`
	Sites      SitesConfig      `yaml:"sites" envPrefix:"SITES_"`
	Selector   SelectorConfig   `yaml:"selector" envPrefix:"SELECTOR_"`
	Pages      PagesConfig      `yaml:"pages" envPrefix:"PAGES_"`
	Decoration DecorationConfig `yaml:"decoration" envPrefix:"DECORATION_"`
	Snapshots  SnapshotsConfig  `yaml:"snapshots" envPrefix:"SNAPSHOTS_"`
	Cache      CacheConfig      `yaml:"cache" envPrefix:"CACHE_"`
	HTTP       HTTPConfig       `yaml:"http" envPrefix:"HTTP_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOGGING_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	// Routes names application route patterns for url generation and
	// route sync, e.g. catalog: /catalog/:slug.
	Routes map[string]string `yaml:"routes"`
	// BaseURL prefixes generated urls. Empty keeps them root relative.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// SitesConfig controls how requests are matched to sites.
type SitesConfig struct {
	Strategy      string `yaml:"strategy" env:"STRATEGY"`
	DefaultLocale string `yaml:"default_locale" env:"DEFAULT_LOCALE"`
}

// SelectorConfig drives editor/visitor mode selection.
type SelectorConfig struct {
	EditorPermission string        `yaml:"editor_permission" env:"EDITOR_PERMISSION"`
	SessionKey       string        `yaml:"session_key" env:"SESSION_KEY"`
	SessionLifetime  time.Duration `yaml:"session_lifetime" env:"SESSION_LIFETIME"`
}

// PagesConfig captures page defaults and internal error routes.
type PagesConfig struct {
	DefaultTemplate      string         `yaml:"default_template" env:"DEFAULT_TEMPLATE"`
	TemplateDir          string         `yaml:"template_dir" env:"TEMPLATE_DIR"`
	DefaultPageService   string         `yaml:"default_page_service" env:"DEFAULT_PAGE_SERVICE"`
	DefaultRequestMethod string         `yaml:"default_request_method" env:"DEFAULT_REQUEST_METHOD"`
	DecorateByDefault    bool           `yaml:"decorate_by_default" env:"DECORATE_BY_DEFAULT"`
	ErrorPages           map[int]string `yaml:"error_pages"`
}

// DecorationConfig lists routes and URIs that are never wrapped by a layout.
type DecorationConfig struct {
	IgnoreRoutes        []string `yaml:"ignore_routes" env:"IGNORE_ROUTES"`
	IgnoreRoutePatterns []string `yaml:"ignore_route_patterns" env:"IGNORE_ROUTE_PATTERNS"`
	IgnoreURIPatterns   []string `yaml:"ignore_uri_patterns" env:"IGNORE_URI_PATTERNS"`
}

// SnapshotsConfig captures publish and cleanup behaviour.
type SnapshotsConfig struct {
	Codec       string `yaml:"codec" env:"CODEC"`
	Keep        int    `yaml:"keep" env:"KEEP"`
	CleanupCron string `yaml:"cleanup_cron" env:"CLEANUP_CRON"`
}

// CacheConfig selects backends and their connection details.
type CacheConfig struct {
	Enabled       bool              `yaml:"enabled" env:"ENABLED"`
	Default       string            `yaml:"default" env:"DEFAULT"`
	DefaultTTL    time.Duration     `yaml:"default_ttl" env:"DEFAULT_TTL"`
	Timeout       time.Duration     `yaml:"timeout" env:"TIMEOUT"`
	Token         string            `yaml:"token" env:"TOKEN"`
	Public        bool              `yaml:"public" env:"PUBLIC"`
	BlockBackends map[string]string `yaml:"block_backends"`
	Memory        MemoryCacheConfig `yaml:"memory" envPrefix:"MEMORY_"`
	Redis         RedisCacheConfig  `yaml:"redis" envPrefix:"REDIS_"`
	Disk          DiskCacheConfig   `yaml:"disk" envPrefix:"DISK_"`
	ESI           EdgeCacheConfig   `yaml:"esi" envPrefix:"ESI_"`
	SSI           EdgeCacheConfig   `yaml:"ssi" envPrefix:"SSI_"`
	JS            JSCacheConfig     `yaml:"js" envPrefix:"JS_"`
}

// MemoryCacheConfig configures the in-process backend and its purge peers.
type MemoryCacheConfig struct {
	Peers []string `yaml:"peers" env:"PEERS"`
}

// RedisCacheConfig configures the distributed key/value backend.
type RedisCacheConfig struct {
	URL        string `yaml:"url" env:"URL"`
	Prefix     string `yaml:"prefix" env:"PREFIX"`
	Contextual bool   `yaml:"contextual" env:"CONTEXTUAL"`
}

// DiskCacheConfig configures the leveldb backend.
type DiskCacheConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// EdgeCacheConfig configures ESI and SSI purge commands. Each server entry is
// a command template using {{ COMMAND }} and {{ EXPRESSION }} placeholders.
type EdgeCacheConfig struct {
	Servers      []string `yaml:"servers" env:"SERVERS"`
	PurgeCommand string   `yaml:"purge_command" env:"PURGE_COMMAND"`
}

// JSCacheConfig selects synchronous or asynchronous client side loading.
type JSCacheConfig struct {
	Sync bool `yaml:"sync" env:"SYNC"`
}

// HTTPConfig captures routing prefixes.
type HTTPConfig struct {
	CachePrefix string  `yaml:"cache_prefix" env:"CACHE_PREFIX"`
	FlushRate   float64 `yaml:"flush_rate" env:"FLUSH_RATE"`
	FlushBurst  int     `yaml:"flush_burst" env:"FLUSH_BURST"`
}

// StorageConfig selects the repository backend. The memory driver keeps
// everything in process.
type StorageConfig struct {
	Driver   string        `yaml:"driver" env:"DRIVER"`
	DSN      string        `yaml:"dsn" env:"DSN"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `yaml:"provider" env:"PROVIDER"`
	Level     string   `yaml:"level" env:"LEVEL"`
	Format    string   `yaml:"format" env:"FORMAT"`
	AddSource bool     `yaml:"add_source" env:"ADD_SOURCE"`
	Focus     []string `yaml:"focus" env:"FOCUS"`
}

// DefaultConfig returns the defaults used when no file or env overrides exist.
func DefaultConfig() Config {
	return Config{
		Sites: SitesConfig{
			Strategy:      StrategyHost,
			DefaultLocale: "en",
		},
		Selector: SelectorConfig{
			EditorPermission: "pagecms.pages.edit",
			SessionKey:       "pagecms.is_editor",
			SessionLifetime:  12 * time.Hour,
		},
		Pages: PagesConfig{
			DefaultTemplate:      "default",
			DefaultPageService:   "default",
			DefaultRequestMethod: "GET|POST|HEAD|DELETE|PUT",
			DecorateByDefault:    true,
			ErrorPages: map[int]string{
				404: "_page_internal_error_not_found",
				500: "_page_internal_error_fatal",
			},
		},
		Decoration: DecorationConfig{
			IgnoreRoutePatterns: []string{`^_`, `^admin_`},
			IgnoreURIPatterns:   []string{`^/admin/`, `^/_cache/`},
		},
		Snapshots: SnapshotsConfig{
			Codec: CodecTyped,
			Keep:  5,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Default:    BackendMemory,
			DefaultTTL: 84600 * time.Second,
			Timeout:    2 * time.Second,
			Redis: RedisCacheConfig{
				Prefix: "pagecms:",
			},
			ESI: EdgeCacheConfig{
				PurgeCommand: "ban",
			},
			SSI: EdgeCacheConfig{
				PurgeCommand: "ban",
			},
		},
		HTTP: HTTPConfig{
			CachePrefix: "/_cache",
			FlushRate:   1,
			FlushBurst:  5,
		},
		Logging: LoggingConfig{
			Provider: "noop",
			Level:    "info",
		},
		Storage: StorageConfig{
			Driver:   DriverMemory,
			CacheTTL: time.Minute,
		},
	}
}

// Validate performs consistency checks.
func (cfg Config) Validate() error {
	if !isSupportedStrategy(cfg.Sites.Strategy) {
		return fmt.Errorf("%w: %s", ErrSiteStrategyUnknown, cfg.Sites.Strategy)
	}
	if strings.TrimSpace(cfg.Selector.EditorPermission) == "" {
		return ErrEditorPermissionRequired
	}
	if strings.TrimSpace(cfg.Selector.SessionKey) == "" {
		return ErrSessionKeyRequired
	}
	if strings.TrimSpace(cfg.Pages.DefaultTemplate) == "" {
		return ErrDefaultTemplateRequired
	}
	for status, route := range cfg.Pages.ErrorPages {
		if !strings.HasPrefix(route, "_page_internal_") {
			return fmt.Errorf("%w: %d => %s", ErrErrorPageRouteInvalid, status, route)
		}
	}
	for _, pattern := range append(append([]string{}, cfg.Decoration.IgnoreRoutePatterns...), cfg.Decoration.IgnoreURIPatterns...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: %s", ErrDecorationPatternInvalid, pattern)
		}
	}
	switch cfg.Snapshots.Codec {
	case CodecTyped, CodecMap:
	default:
		return fmt.Errorf("%w: %s", ErrSnapshotCodecUnknown, cfg.Snapshots.Codec)
	}
	if cfg.Snapshots.Keep < 0 {
		return ErrSnapshotKeepInvalid
	}
	if err := cfg.Cache.validate(); err != nil {
		return err
	}
	if err := cfg.Storage.validate(); err != nil {
		return err
	}
	return cfg.Logging.validate()
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("%w: %s", ErrStorageDSNRequired, s.Driver)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, s.Driver)
	}
}

// Backends lists every backend code referenced by the cache config.
func (c CacheConfig) Backends() []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(code string) {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		out = append(out, code)
	}
	add(c.Default)
	for _, code := range c.BlockBackends {
		add(code)
	}
	return out
}

func (c CacheConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	for _, code := range c.Backends() {
		switch code {
		case BackendNoop, BackendMemory, BackendDocument, BackendJS, BackendESI:
		case BackendSSI:
			if strings.TrimSpace(c.Token) == "" {
				return fmt.Errorf("%w: %s", ErrCacheTokenRequired, code)
			}
		case BackendRedis:
			if strings.TrimSpace(c.Redis.URL) == "" {
				return ErrCacheRedisURLRequired
			}
		case BackendDisk:
			if strings.TrimSpace(c.Disk.Path) == "" {
				return ErrCacheDiskPathRequired
			}
		default:
			return fmt.Errorf("%w: %s", ErrCacheBackendUnknown, code)
		}
	}
	if len(c.Memory.Peers) > 0 && strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("%w: memory peers", ErrCacheTokenRequired)
	}
	return nil
}

func (l LoggingConfig) validate() error {
	provider := strings.ToLower(strings.TrimSpace(l.Provider))
	switch provider {
	case "", "noop":
		return nil
	case "gologger":
	default:
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := strings.TrimSpace(l.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if format := strings.TrimSpace(l.Format); format != "" && !isSupportedFormat(format) {
		return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
	}
	return nil
}

func isSupportedStrategy(strategy string) bool {
	switch strategy {
	case StrategyHost, StrategyHostWithLocale, StrategyHostWithPath, StrategyHostPathWithLocale:
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
