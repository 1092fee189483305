package strategy

// Class is the handling strategy assigned to one request. It is derived
// from request attributes only and never persisted.
type Class string

const (
	Navigation  Class = "navigation"
	APIGet      Class = "api_get"
	StaticAsset Class = "static_asset"
	Default     Class = "default"
	// PassThrough marks requests this intermediary does not intercept.
	PassThrough Class = "pass_through"
)

// Intercepted reports whether a strategy handler serves the class.
func (c Class) Intercepted() bool {
	switch c {
	case Navigation, APIGet, StaticAsset, Default:
		return true
	default:
		return false
	}
}

// Classes lists the intercepted classes in classification priority order.
func Classes() []Class {
	return []Class{Navigation, APIGet, StaticAsset, Default}
}
