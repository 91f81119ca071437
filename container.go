package modkit

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modkit-go/modkit/internal/graph"
)

// Container owns the module arena, the singleton instance cache, and
// resolution. Construct one explicitly with New; there is no package-level
// container, so tests get a fresh instance per case.
//
// The declaration graph is immutable after Build. The instance cache has a
// single controlled mutation path: entries are written once, on first
// resolution, and live until the container is dropped.
type Container struct {
	id   string
	log  *zap.Logger
	opts options

	mu    sync.RWMutex
	arena map[string]*moduleState
	order []string
	built bool

	cache *instanceCache
}

// moduleState is a registered module plus the lookup structures derived from
// its descriptor.
type moduleState struct {
	def     *Module
	regs    map[Token]*registration
	exports map[Token]struct{}
}

// registration is the unified internal form of a provider or controller.
type registration struct {
	module     string
	token      Token
	deps       []DepRef
	build      Factory
	value      any
	routes     []Route
	controller bool
}

func (r *registration) key() instanceKey {
	return instanceKey{Module: r.module, Token: string(r.token)}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Container{
		id:    uuid.NewString(),
		log:   o.logger,
		opts:  o,
		arena: make(map[string]*moduleState),
		cache: newInstanceCache(),
	}
}

// ID returns the container's unique identifier, used for log correlation.
func (c *Container) ID() string {
	return c.id
}

// Logger returns the logger the container was configured with, so
// collaborators log through the same sink instead of ambient globals.
func (c *Container) Logger() *zap.Logger {
	return c.log
}

// Register adds modules to the arena in order. Each module is validated in
// isolation, then against the arena: the name must be free and every direct
// import must already be registered. Forward imports are deliberately not
// checked here; that is what makes mutually importing modules declarable.
func (c *Container) Register(mods ...*Module) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		return ConfigurationError{Cause: ErrAlreadyBuilt}
	}

	for _, m := range mods {
		if m == nil {
			continue
		}

		if err := m.validate(); err != nil {
			return err
		}

		if _, exists := c.arena[m.Name]; exists {
			return ConfigurationError{Module: m.Name, Cause: ErrModuleRedefined}
		}

		for _, ref := range m.Imports {
			if ref.Lazy {
				continue
			}
			if _, ok := c.arena[ref.Name]; !ok {
				return ConfigurationError{
					Module: m.Name,
					Cause:  fmt.Errorf("import %q: %w", ref.Name, ErrModuleNotFound),
				}
			}
		}

		ms := &moduleState{
			def:     m,
			regs:    make(map[Token]*registration, len(m.Providers)+len(m.Controllers)),
			exports: m.exports(),
		}
		for i := range m.Providers {
			p := &m.Providers[i]
			ms.regs[p.Token] = &registration{
				module: m.Name,
				token:  p.Token,
				deps:   p.Deps,
				build:  p.Build,
				value:  p.Value,
			}
		}
		for i := range m.Controllers {
			ctrl := &m.Controllers[i]
			ms.regs[ctrl.Token] = &registration{
				module:     m.Name,
				token:      ctrl.Token,
				deps:       ctrl.Deps,
				build:      ctrl.Build,
				routes:     ctrl.Routes,
				controller: true,
			}
		}

		c.arena[m.Name] = ms
		c.order = append(c.order, m.Name)

		c.log.Debug("registered module",
			zap.String("container", c.id),
			zap.String("module", m.Name),
			zap.Int("providers", len(m.Providers)),
			zap.Int("controllers", len(m.Controllers)),
		)
	}

	return nil
}

// Build performs the fail-fast bootstrap: it verifies that every forward
// module reference lands in the arena, that every declared dependency is
// visible from its owning module, that the eager part of the graph is
// acyclic, and then dry-run constructs every provider and controller in
// dependency order so misconfigurations surface before traffic, not on
// first request.
//
// With WithDeferredResolution the dry run is skipped and instances are
// constructed on first use instead.
func (c *Container) Build() error {
	c.mu.Lock()
	if c.built {
		c.mu.Unlock()
		return ConfigurationError{Cause: ErrAlreadyBuilt}
	}
	c.mu.Unlock()

	if errs := c.validateReferences(); len(errs) > 0 {
		return BuildError{Phase: "validate", Errors: errs}
	}

	g, errs := c.buildGraph()
	if len(errs) > 0 {
		return BuildError{Phase: "graph", Errors: errs}
	}
	if err := g.DetectCycles(); err != nil {
		return BuildError{Phase: "graph", Errors: []error{err}}
	}

	if !c.opts.deferred {
		sorted, err := g.TopologicalSort()
		if err != nil {
			return BuildError{Phase: "graph", Errors: []error{err}}
		}

		var dryRunErrs []error
		failed := make(map[instanceKey]bool)
		for _, key := range sorted {
			reg, err := c.registrationAt(key)
			if err != nil {
				dryRunErrs = append(dryRunErrs, err)
				continue
			}

			// A registration whose dependency already failed would only
			// re-report the same root cause.
			skip := false
			for _, dep := range g.Dependencies(key) {
				if failed[dep] {
					failed[key] = true
					skip = true
					break
				}
			}
			if skip {
				continue
			}

			if _, err := c.resolveRoot(reg); err != nil {
				failed[key] = true
				dryRunErrs = append(dryRunErrs, err)
			}
		}
		if len(dryRunErrs) > 0 {
			return BuildError{Phase: "dry-run", Errors: dryRunErrs}
		}
	}

	c.mu.Lock()
	c.built = true
	c.mu.Unlock()

	c.log.Info("container built",
		zap.String("container", c.id),
		zap.Int("modules", len(c.order)),
		zap.Int("instances", c.cache.size()),
		zap.Bool("deferred", c.opts.deferred),
	)
	return nil
}

// Resolve returns the singleton instance for token as visible from module:
// the module's own registration first, otherwise a registration exported by
// exactly one imported module.
func (c *Container) Resolve(module string, token Token) (any, error) {
	reg, err := c.locate(module, token)
	if err != nil {
		return nil, err
	}
	return c.resolveRoot(reg)
}

// ResolveAs resolves module/token and asserts the instance to T.
func ResolveAs[T any](c *Container, module string, token Token) (T, error) {
	var zero T

	instance, err := c.Resolve(module, token)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("token %q in module %q holds %T, not %T", token, module, instance, zero)
	}
	return typed, nil
}

// ControllerInstance is a resolved controller together with the route
// bindings the HTTP layer mounts. The container never interprets Routes.
type ControllerInstance struct {
	Module string
	Token  Token
	Routes []Route
	Value  any
}

// Controllers resolves every controller declared by the named module.
func (c *Container) Controllers(module string) ([]ControllerInstance, error) {
	c.mu.RLock()
	ms, ok := c.arena[module]
	c.mu.RUnlock()
	if !ok {
		return nil, ConfigurationError{Module: module, Cause: ErrModuleNotFound}
	}

	var instances []ControllerInstance
	for _, ctrl := range ms.def.Controllers {
		reg := ms.regs[ctrl.Token]
		value, err := c.resolveRoot(reg)
		if err != nil {
			return nil, err
		}
		instances = append(instances, ControllerInstance{
			Module: module,
			Token:  ctrl.Token,
			Routes: ctrl.Routes,
			Value:  value,
		})
	}
	return instances, nil
}

// AllControllers resolves every controller in registration order.
func (c *Container) AllControllers() ([]ControllerInstance, error) {
	c.mu.RLock()
	order := make([]string, len(c.order))
	copy(order, c.order)
	c.mu.RUnlock()

	var instances []ControllerInstance
	for _, name := range order {
		ctrls, err := c.Controllers(name)
		if err != nil {
			return nil, err
		}
		instances = append(instances, ctrls...)
	}
	return instances, nil
}

// Modules returns the names of all registered modules in registration order.
func (c *Container) Modules() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// WriteGraph writes the eager dependency graph in Graphviz DOT format.
func (c *Container) WriteGraph(w io.Writer) error {
	g, errs := c.buildGraph()
	if len(errs) > 0 {
		return BuildError{Phase: "graph", Errors: errs}
	}
	return g.WriteDOT(w)
}

// locate finds the registration for token as visible from module. Own
// registrations win; otherwise every imported module that both owns and
// exports the token is a candidate, and anything other than exactly one
// candidate is an error.
func (c *Container) locate(module string, token Token) (*registration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locateLocked(module, token)
}

func (c *Container) locateLocked(module string, token Token) (*registration, error) {
	ms, ok := c.arena[module]
	if !ok {
		return nil, ConfigurationError{Module: module, Cause: ErrModuleNotFound}
	}

	if reg, ok := ms.regs[token]; ok {
		return reg, nil
	}

	var (
		found   *registration
		sources []string
		seen    = make(map[string]struct{}, len(ms.def.Imports))
	)
	for _, ref := range ms.def.Imports {
		if _, dup := seen[ref.Name]; dup {
			continue
		}
		seen[ref.Name] = struct{}{}

		imp, ok := c.arena[ref.Name]
		if !ok {
			// Direct imports were checked at Register, so this is a forward
			// reference to a module that never arrived.
			return nil, ConfigurationError{
				Module: module,
				Cause:  fmt.Errorf("import %q: %w", ref.Name, ErrModuleNotFound),
			}
		}

		if _, exported := imp.exports[token]; !exported {
			continue
		}
		if reg, ok := imp.regs[token]; ok && !reg.controller {
			found = reg
			sources = append(sources, ref.Name)
		}
	}

	switch len(sources) {
	case 1:
		return found, nil
	case 0:
		return nil, UnresolvedDependencyError{
			Module:  module,
			Token:   token,
			Visible: c.visibleTokensLocked(ms),
		}
	default:
		sort.Strings(sources)
		return nil, ConfigurationError{
			Module: module,
			Cause:  fmt.Errorf("token %q exported by modules %v: %w", token, sources, ErrAmbiguousExport),
		}
	}
}

// visibleTokensLocked lists every token resolvable from ms, for error
// suggestions. Caller must hold the lock.
func (c *Container) visibleTokensLocked(ms *moduleState) []Token {
	var tokens []Token
	for t := range ms.regs {
		tokens = append(tokens, t)
	}
	for _, ref := range ms.def.Imports {
		if imp, ok := c.arena[ref.Name]; ok {
			for t := range imp.exports {
				tokens = append(tokens, t)
			}
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	return tokens
}

// registrationAt returns the registration owning key.
func (c *Container) registrationAt(key instanceKey) (*registration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ms, ok := c.arena[key.Module]
	if !ok {
		return nil, ConfigurationError{Module: key.Module, Cause: ErrModuleNotFound}
	}
	reg, ok := ms.regs[Token(key.Token)]
	if !ok {
		return nil, UnresolvedDependencyError{Module: key.Module, Token: Token(key.Token)}
	}
	return reg, nil
}

// validateReferences checks that every forward module reference resolves in
// the arena and that every declared dependency token is visible from its
// owning module. Collects all defects instead of stopping at the first.
func (c *Container) validateReferences() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	for _, name := range c.order {
		ms := c.arena[name]

		for _, ref := range ms.def.Imports {
			if _, ok := c.arena[ref.Name]; !ok {
				errs = append(errs, ConfigurationError{
					Module: name,
					Cause:  fmt.Errorf("import %q: %w", ref.Name, ErrModuleNotFound),
				})
			}
		}

		for _, reg := range ms.regs {
			for _, dep := range reg.deps {
				if _, err := c.locateLocked(name, dep.Token); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errs
}

// buildGraph assembles the eager dependency graph: one node per
// registration, one edge per direct (non-lazy) dependency reference. Lazy
// references contribute no edge, which is exactly how a declared cycle
// stays buildable.
func (c *Container) buildGraph() (*graph.Graph, []error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g := graph.New()
	var errs []error
	for _, name := range c.order {
		ms := c.arena[name]
		for _, reg := range ms.regs {
			g.AddNode(reg.key())
			for _, dep := range reg.deps {
				if dep.Lazy {
					continue
				}
				target, err := c.locateLocked(name, dep.Token)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				g.AddEdge(reg.key(), target.key())
			}
		}
	}
	return g, errs
}
