package blocktypes

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// decodeSettings maps merged block settings onto a typed struct. Values
// stored as strings by older editors, such as "5", decode into numbers.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "setting",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

// Dependencies are the collaborators of the built in renderers.
type Dependencies struct {
	Templates interfaces.TemplateRenderer
	Logger    interfaces.Logger
	// RSSClient overrides the http client of the rss block.
	RSSClient HTTPDoer
}

// Register adds every built in renderer to registry.
func Register(registry *render.Registry, deps Dependencies) error {
	renderers := []render.BlockRenderer{
		NewContainerRenderer(),
		NewSharedBlockRenderer(),
		NewTextRenderer(),
		NewRSSRenderer(deps.RSSClient, deps.Logger),
	}
	if deps.Templates != nil {
		renderers = append(renderers, NewTemplateRenderer(deps.Templates))
	}
	for _, renderer := range renderers {
		if err := registry.Register(renderer); err != nil {
			return err
		}
	}
	return nil
}
