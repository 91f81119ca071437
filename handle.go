package modkit

import (
	"fmt"
	"sync"
)

// Handle is a forward handle: a stand-in for a lazily referenced dependency.
// Factories that declared a dependency with LazyDep receive a *Handle in its
// place and may stash it without touching the target; the first call to
// Resolve looks the target up, constructs it if nobody has yet, and caches
// the outcome in the handle. By the time a handle is used after bootstrap,
// both sides of a declared cycle are already in the singleton cache, so the
// indirection simply forwards.
//
// Resolving a handle while its target is still under construction on the
// same chain is a genuine run-time cycle and fails with
// CircularResolutionError.
type Handle struct {
	c      *Container
	module string
	token  Token
	origin *resolutionContext

	once  sync.Once
	value any
	err   error
}

func newHandle(c *Container, module string, token Token, origin *resolutionContext) *Handle {
	return &Handle{c: c, module: module, token: token, origin: origin}
}

// Token returns the referenced token.
func (h *Handle) Token() Token {
	return h.token
}

// Resolve constructs or fetches the target and returns it. The first call
// decides the outcome; every later call returns the same instance or the
// same error.
func (h *Handle) Resolve() (any, error) {
	h.once.Do(func() {
		h.value, h.err = h.resolve()
	})
	return h.value, h.err
}

func (h *Handle) resolve() (any, error) {
	reg, err := h.c.locate(h.module, h.token)
	if err != nil {
		return nil, err
	}

	// While the originating resolution is still running, resolve on its
	// chain so that a handle used inside a factory keeps full cycle
	// tracking. Afterwards the chain is gone and a fresh one suffices.
	if h.origin != nil && h.origin.isActive() {
		return h.c.resolveReg(h.origin, reg)
	}

	ctx := newResolutionContext()
	defer ctx.finish()
	return h.c.resolveReg(ctx, reg)
}

// Deref resolves the handle and asserts the instance to T.
func Deref[T any](h *Handle) (T, error) {
	var zero T

	instance, err := h.Resolve()
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("token %q in module %q holds %T, not %T", h.token, h.module, instance, zero)
	}
	return typed, nil
}
