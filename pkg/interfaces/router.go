package interfaces

// URLGenerator builds absolute or root-relative URLs for named routes. It is
// used for cache fulfillment directives and redirect targets.
type URLGenerator interface {
	Generate(route string, params map[string]string, query map[string]string) (string, error)
}
