package modkit

// Module is a named grouping of providers and controllers with explicit
// import/export boundaries. Modules are plain data: declare them once at
// startup, register them with a Container, and never mutate them afterward.
//
// Example:
//
//	var Users = &modkit.Module{
//	    Name: "users",
//	    Providers: []modkit.Provider{
//	        modkit.Supply("users.repo", repo.NewMemory[*User]()),
//	        modkit.Provide("users.service", NewUsersService, modkit.Dep("users.repo")),
//	    },
//	    Exports: []modkit.Token{"users.service"},
//	}
//
//	var Reviews = &modkit.Module{
//	    Name:    "reviews",
//	    Imports: []modkit.ModuleRef{modkit.Forward("users")},
//	    Providers: []modkit.Provider{
//	        modkit.Provide("reviews.service", NewReviewsService, modkit.LazyDep("users.service")),
//	    },
//	    Exports: []modkit.Token{"reviews.service"},
//	}
type Module struct {
	// Name addresses the module in the container's arena. Imports and
	// forward references resolve by this name.
	Name string

	// Imports lists the modules whose exports become visible here. Direct
	// imports must already be registered; forward references are looked up
	// on first resolution. Visibility is not transitive: importing a module
	// does not expose what that module itself imports.
	Imports []ModuleRef

	// Providers are the registrations owned by this module.
	Providers []Provider

	// Controllers are constructed like providers but additionally carry
	// route bindings for the HTTP layer. They are never exported.
	Controllers []Controller

	// Exports is the subset of this module's provider tokens visible to
	// importers. Everything else stays private to the module.
	Exports []Token
}

// validate checks the module's own shape: non-empty names, well-formed
// registrations, no duplicate tokens, exports that name real providers.
// Cross-module checks (import targets, visibility) belong to the container.
func (m *Module) validate() error {
	if m.Name == "" {
		return ConfigurationError{Cause: ErrEmptyModuleName}
	}

	seen := make(map[Token]struct{}, len(m.Providers)+len(m.Controllers))

	for _, p := range m.Providers {
		if err := p.validate(); err != nil {
			return ConfigurationError{Module: m.Name, Cause: err}
		}
		if _, dup := seen[p.Token]; dup {
			return ConfigurationError{Module: m.Name, Cause: wrapToken(p.Token, ErrDuplicateToken)}
		}
		seen[p.Token] = struct{}{}
	}

	for _, c := range m.Controllers {
		if err := c.validate(); err != nil {
			return ConfigurationError{Module: m.Name, Cause: err}
		}
		if _, dup := seen[c.Token]; dup {
			return ConfigurationError{Module: m.Name, Cause: wrapToken(c.Token, ErrDuplicateToken)}
		}
		seen[c.Token] = struct{}{}
	}

	providerTokens := make(map[Token]struct{}, len(m.Providers))
	for _, p := range m.Providers {
		providerTokens[p.Token] = struct{}{}
	}
	for _, t := range m.Exports {
		if _, ok := providerTokens[t]; !ok {
			return ConfigurationError{Module: m.Name, Cause: wrapToken(t, ErrUnknownExport)}
		}
	}

	for _, ref := range m.Imports {
		if ref.Name == "" {
			return ConfigurationError{Module: m.Name, Cause: ErrEmptyModuleName}
		}
	}

	return nil
}

// exports returns the export set as a lookup map.
func (m *Module) exports() map[Token]struct{} {
	set := make(map[Token]struct{}, len(m.Exports))
	for _, t := range m.Exports {
		set[t] = struct{}{}
	}
	return set
}
