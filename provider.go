package modkit

// Factory constructs one value from its resolved dependencies. Arguments
// arrive in the order the dependencies were declared; a lazy dependency
// arrives as a *Handle instead of the constructed value. A factory runs at
// most once per (module, token) pair for the container lifetime.
type Factory func(deps ...any) (any, error)

// Provider associates a token with a construction strategy: either a factory
// plus its declared dependency references, or a pre-built value. It belongs
// to exactly one module.
type Provider struct {
	Token Token
	Deps  []DepRef
	Build Factory

	// Value registers a pre-built instance. Mutually exclusive with Build.
	Value any
}

// Provide registers a factory under token with its declared dependencies.
func Provide(token Token, build Factory, deps ...DepRef) Provider {
	return Provider{Token: token, Deps: deps, Build: build}
}

// Supply registers a pre-built value under token.
func Supply(token Token, value any) Provider {
	return Provider{Token: token, Value: value}
}

func (p Provider) validate() error {
	if p.Token == "" {
		return ErrEmptyToken
	}
	if p.Build == nil && p.Value == nil {
		return wrapToken(p.Token, ErrNilFactory)
	}
	if p.Build != nil && p.Value != nil {
		return wrapToken(p.Token, ErrFactoryAndValue)
	}
	for _, d := range p.Deps {
		if d.Token == "" {
			return wrapToken(p.Token, ErrEmptyToken)
		}
	}
	return nil
}

// Route is one binding of a controller method. The container carries routes
// as opaque data for the HTTP layer; it never interprets methods, paths, or
// handler names itself.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// Controller is a construction strategy plus the route bindings the HTTP
// layer mounts once the instance is resolved. Controllers are cached like
// providers but stay private to their module.
type Controller struct {
	Token  Token
	Deps   []DepRef
	Build  Factory
	Routes []Route
}

// NewController registers a controller factory under token with its routes
// and declared dependencies.
func NewController(token Token, build Factory, routes []Route, deps ...DepRef) Controller {
	return Controller{Token: token, Deps: deps, Build: build, Routes: routes}
}

func (c Controller) validate() error {
	if c.Token == "" {
		return ErrEmptyToken
	}
	if c.Build == nil {
		return wrapToken(c.Token, ErrNilFactory)
	}
	for _, d := range c.Deps {
		if d.Token == "" {
			return wrapToken(c.Token, ErrEmptyToken)
		}
	}
	return nil
}
