package pagecms

import "github.com/goliatone/go-pagecms/internal/runtimeconfig"

var (
	ErrSiteStrategyUnknown      = runtimeconfig.ErrSiteStrategyUnknown
	ErrDefaultTemplateRequired  = runtimeconfig.ErrDefaultTemplateRequired
	ErrErrorPageRouteInvalid    = runtimeconfig.ErrErrorPageRouteInvalid
	ErrDecorationPatternInvalid = runtimeconfig.ErrDecorationPatternInvalid
	ErrSnapshotCodecUnknown     = runtimeconfig.ErrSnapshotCodecUnknown
	ErrCacheBackendUnknown      = runtimeconfig.ErrCacheBackendUnknown
	ErrCacheTokenRequired       = runtimeconfig.ErrCacheTokenRequired
	ErrStorageDriverUnknown     = runtimeconfig.ErrStorageDriverUnknown
	ErrLoggingProviderUnknown   = runtimeconfig.ErrLoggingProviderUnknown
)

type (
	Config           = runtimeconfig.Config
	SitesConfig      = runtimeconfig.SitesConfig
	SelectorConfig   = runtimeconfig.SelectorConfig
	PagesConfig      = runtimeconfig.PagesConfig
	DecorationConfig = runtimeconfig.DecorationConfig
	SnapshotsConfig  = runtimeconfig.SnapshotsConfig
	CacheConfig      = runtimeconfig.CacheConfig
	HTTPConfig       = runtimeconfig.HTTPConfig
	StorageConfig    = runtimeconfig.StorageConfig
	LoggingConfig    = runtimeconfig.LoggingConfig
)

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig overlays an optional YAML file and PAGECMS_* variables on the
// defaults.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.Load(path)
}
