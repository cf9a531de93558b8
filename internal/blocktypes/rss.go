package blocktypes

import (
	"context"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// RSSTimeout bounds a feed fetch. A slow or failing feed renders the block
// without items.
const RSSTimeout = 2 * time.Second

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type rssSettings struct {
	URL   string `setting:"url"`
	Title string `setting:"title"`
	Limit int    `setting:"limit"`
}

type rssFeed struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

var rssTemplate = template.Must(template.New("rss").Parse(
	`<section class="cms-rss"><h3>{{ .Title }}</h3><ul>{{ range .Items }}<li><a href="{{ .Link }}">{{ .Title }}</a></li>{{ end }}</ul></section>`,
))

// RSSRenderer lists the latest items of a remote feed.
type RSSRenderer struct {
	client HTTPDoer
	logger interfaces.Logger
}

func NewRSSRenderer(client HTTPDoer, logger interfaces.Logger) *RSSRenderer {
	if client == nil {
		client = &http.Client{Timeout: RSSTimeout}
	}
	return &RSSRenderer{client: client, logger: logging.Ensure(logger)}
}

func (*RSSRenderer) Type() string { return "rss" }

func (*RSSRenderer) DefaultSettings() map[string]any {
	return map[string]any{"title": "", "limit": 5}
}

func (*RSSRenderer) SettingsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":   map[string]any{"type": "string", "minLength": 1},
			"title": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []any{"url", "title"},
	}
}

// CacheTTL keeps feeds fresher than static blocks.
func (*RSSRenderer) CacheTTL() time.Duration { return 10 * time.Minute }

func (r *RSSRenderer) Render(ctx context.Context, bc *render.BlockContext, w io.Writer) error {
	var settings rssSettings
	if err := decodeSettings(bc.Settings, &settings); err != nil {
		return err
	}
	items, err := r.fetch(ctx, settings.URL)
	if err != nil {
		logging.ForContext(r.logger, ctx).Warn("blocktypes.rss.fetch_failed", "block_id", bc.Block.ID, "url", settings.URL, "error", err)
		items = nil
	}
	if settings.Limit > 0 && len(items) > settings.Limit {
		items = items[:settings.Limit]
	}
	return rssTemplate.Execute(w, map[string]any{"Title": settings.Title, "Items": items})
}

func (r *RSSRenderer) fetch(ctx context.Context, url string) ([]rssItem, error) {
	ctx, cancel := context.WithTimeout(ctx, RSSTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}
	var feed rssFeed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return feed.Channel.Items, nil
}
