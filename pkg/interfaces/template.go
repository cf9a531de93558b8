package interfaces

import "io"

// TemplateRenderer renders a named template with the supplied data. The page
// pipeline only depends on "bytes for this template and these params"; the
// template syntax is owned by the implementation.
type TemplateRenderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}
