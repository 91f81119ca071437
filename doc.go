// Package modkit provides a module-scoped dependency injection container.
// Providers are registered under string tokens inside named modules with
// explicit import/export boundaries, the pattern familiar from
// module-oriented web frameworks, expressed as plain Go data with no
// reflection over constructors and no code generation.
//
// # Overview
//
// modkit provides:
//   - Modules: named groups of providers with explicit imports and exports
//   - Process-lifetime singletons, one instance per (module, token)
//   - Forward references for mutually importing modules
//   - Forward handles that break provider construction cycles by resolving
//     on first use
//   - Fail-fast bootstrap: a dry run constructs everything and reports every
//     misconfiguration before the application starts
//   - Controllers: provider-like registrations carrying opaque route
//     bindings for an HTTP layer to mount
//
// # Basic Usage
//
// Declare modules, register them, build, resolve:
//
//	users := &modkit.Module{
//	    Name: "users",
//	    Providers: []modkit.Provider{
//	        modkit.Supply("users.repo", repo.NewMemory[*User]()),
//	        modkit.Provide("users.service", func(deps ...any) (any, error) {
//	            return NewUsersService(deps[0].(repo.Repository[*User])), nil
//	        }, modkit.Dep("users.repo")),
//	    },
//	    Exports: []modkit.Token{"users.service"},
//	}
//
//	c := modkit.New()
//	if err := c.Register(users); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Build(); err != nil {
//	    log.Fatal(err)
//	}
//
//	svc, err := modkit.ResolveAs[*UsersService](c, "users", "users.service")
//
// # Visibility
//
// A token resolves from a module if the module registered it itself, or if
// exactly one imported module both registered and exported it. Visibility is
// not transitive: if B imports A and C imports B, C cannot see A's exports
// unless B re-exports them. Two imported modules exporting the same token is
// a configuration error, never an arbitrary pick.
//
// # Cycles
//
// Modules that import each other must declare the import with Forward
// instead of Import, and providers that depend on each other across the
// cycle must declare the dependency with LazyDep. A lazy dependency arrives
// in the factory as a *Handle; resolving the handle after bootstrap returns
// the already-cached instance on the other side of the cycle. The same
// graph declared with direct references fails fast with
// CircularResolutionError instead of recursing.
//
// # Bootstrap
//
// Build validates the static graph, rejects eager cycles, and dry-run
// constructs every provider and controller in dependency order so that a
// misconfigured graph stops the process before it accepts traffic. Use
// WithDeferredResolution to construct on first use instead; concurrent
// first resolutions of the same token then serialize on a per-entry latch,
// with exactly one factory invocation. Chains that end up holding each
// other's latches are detected and fail with CircularResolutionError
// rather than deadlocking.
package modkit
