package sites

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WildcardHost matches any request host.
const WildcardHost = "localhost"

// Site is a logical website served by the page pipeline.
type Site struct {
	bun.BaseModel `bun:"table:page_sites,alias:st"`

	ID              uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	Name            string     `bun:"name,notnull" json:"name"`
	Host            string     `bun:"host,notnull" json:"host"`
	RelativePath    string     `bun:"relative_path" json:"relative_path,omitempty"`
	Locale          string     `bun:"locale" json:"locale,omitempty"`
	Enabled         bool       `bun:"enabled,notnull,default:true" json:"enabled"`
	EnabledFrom     *time.Time `bun:"enabled_from,nullzero" json:"enabled_from,omitempty"`
	EnabledTo       *time.Time `bun:"enabled_to,nullzero" json:"enabled_to,omitempty"`
	IsDefault       bool       `bun:"is_default,notnull,default:false" json:"is_default"`
	Title           string     `bun:"title" json:"title,omitempty"`
	MetaKeywords    string     `bun:"meta_keywords" json:"meta_keywords,omitempty"`
	MetaDescription string     `bun:"meta_description" json:"meta_description,omitempty"`
	CreatedAt       time.Time  `bun:",nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time  `bun:",nullzero,default:current_timestamp" json:"updated_at"`
}

// IsEnabledAt reports whether the site is active at now. The window is
// half open: [EnabledFrom, EnabledTo).
func (s *Site) IsEnabledAt(now time.Time) bool {
	if s == nil || !s.Enabled {
		return false
	}
	if s.EnabledFrom != nil && now.Before(*s.EnabledFrom) {
		return false
	}
	if s.EnabledTo != nil && !now.Before(*s.EnabledTo) {
		return false
	}
	return true
}

// MatchesHost reports an exact match or the wildcard host.
func (s *Site) MatchesHost(host string) bool {
	if s == nil {
		return false
	}
	siteHost := strings.ToLower(strings.TrimSpace(s.Host))
	return siteHost == WildcardHost || siteHost == normalizeHost(host)
}

// Path returns the normalised relative path ("" for root sites).
func (s *Site) Path() string {
	if s == nil {
		return ""
	}
	return normalizePath(s.RelativePath)
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	return host
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return ""
	}
	return "/" + strings.Trim(path, "/")
}
