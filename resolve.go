package modkit

import (
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// resolutionContext tracks one root resolution: the registrations currently
// under construction on this chain (for cycle detection), the construction
// stack (for cycle reporting), and the recursion depth. A context stays
// active until its root resolution returns; forward handles created during
// construction resolve through their originating context while it is
// active, so a handle used inside a factory is still covered by the chain's
// cycle tracking.
type resolutionContext struct {
	mu        sync.Mutex
	resolving map[instanceKey]bool
	stack     []instanceKey
	depth     int
	active    bool
}

func newResolutionContext() *resolutionContext {
	return &resolutionContext{
		resolving: make(map[instanceKey]bool),
		active:    true,
	}
}

// start marks key as under construction on this chain. Returns false if key
// is already on the chain, which is a genuine eager cycle.
func (ctx *resolutionContext) start(key instanceKey) bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.resolving[key] {
		return false
	}
	ctx.resolving[key] = true
	ctx.stack = append(ctx.stack, key)
	return true
}

// stop removes key from the chain.
func (ctx *resolutionContext) stop(key instanceKey) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	delete(ctx.resolving, key)
	for i := len(ctx.stack) - 1; i >= 0; i-- {
		if ctx.stack[i] == key {
			ctx.stack = append(ctx.stack[:i], ctx.stack[i+1:]...)
			break
		}
	}
}

func (ctx *resolutionContext) isResolving(key instanceKey) bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.resolving[key]
}

// waitPath returns this chain's full construction stack with key appended,
// for reporting a cycle that runs through another chain's latch. Unlike
// cyclePath, key is not on this chain's own stack.
func (ctx *resolutionContext) waitPath(key instanceKey) []instanceKey {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	path := make([]instanceKey, 0, len(ctx.stack)+1)
	path = append(path, ctx.stack...)
	path = append(path, key)
	return path
}

// cyclePath returns the construction stack from the first occurrence of key
// onward, the shape CircularResolutionError expects.
func (ctx *resolutionContext) cyclePath(key instanceKey) []instanceKey {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	start := 0
	for i, k := range ctx.stack {
		if k == key {
			start = i
			break
		}
	}
	path := make([]instanceKey, 0, len(ctx.stack)-start+1)
	path = append(path, ctx.stack[start:]...)
	path = append(path, key)
	return path
}

// finish deactivates the context once its root resolution returns. Handles
// created during construction switch to fresh contexts from then on.
func (ctx *resolutionContext) finish() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.active = false
}

func (ctx *resolutionContext) isActive() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.active
}

func (ctx *resolutionContext) enter() int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.depth++
	return ctx.depth
}

func (ctx *resolutionContext) leave() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.depth > 0 {
		ctx.depth--
	}
}

// resolveRoot resolves reg under a fresh context.
func (c *Container) resolveRoot(reg *registration) (any, error) {
	ctx := newResolutionContext()
	defer ctx.finish()
	return c.resolveReg(ctx, reg)
}

// resolveReg returns the singleton instance for reg, constructing it if this
// chain is the first to ask. Exactly one caller per key becomes the owner
// and runs the factory; concurrent callers from other chains wait on the
// entry latch and share the owner's outcome. A re-entrant request on the
// same chain is a cycle and fails instead of deadlocking.
func (c *Container) resolveReg(ctx *resolutionContext, reg *registration) (any, error) {
	key := reg.key()

	depth := ctx.enter()
	defer ctx.leave()
	if c.opts.maxDepth > 0 && depth > c.opts.maxDepth {
		return nil, MaxDepthError{
			Module:   reg.module,
			Token:    reg.token,
			Depth:    depth,
			MaxDepth: c.opts.maxDepth,
		}
	}

	if ctx.isResolving(key) {
		return nil, &CircularResolutionError{Node: key, Path: ctx.cyclePath(key)}
	}

	entry, owner := c.cache.begin(ctx, key)
	if !owner {
		if !c.cache.await(ctx, entry) {
			// Another chain owns this key and is, directly or through
			// further latches, waiting on work this chain owns. Blocking
			// would deadlock both goroutines; the cycle crosses chains
			// instead of re-entering one.
			return nil, &CircularResolutionError{Node: key, Path: ctx.waitPath(key)}
		}
		if entry.state == stateFailed {
			return nil, entry.err
		}
		return entry.value, nil
	}

	ctx.start(key)
	defer ctx.stop(key)

	value, err := c.construct(ctx, reg)
	if err != nil {
		c.cache.fail(key, err)
		return nil, err
	}

	c.cache.complete(key, value)
	c.log.Debug("constructed",
		zap.String("container", c.id),
		zap.String("module", reg.module),
		zap.String("token", string(reg.token)),
	)
	return value, nil
}

// construct resolves reg's declared dependencies in order and invokes its
// factory. Direct dependencies recurse inline; lazy dependencies become
// forward handles bound to this context.
func (c *Container) construct(ctx *resolutionContext, reg *registration) (any, error) {
	if reg.build == nil {
		return reg.value, nil
	}

	args := make([]any, len(reg.deps))
	for i, dep := range reg.deps {
		if dep.Lazy {
			args[i] = newHandle(c, reg.module, dep.Token, ctx)
			continue
		}

		target, err := c.locate(reg.module, dep.Token)
		if err != nil {
			return nil, err
		}
		value, err := c.resolveReg(ctx, target)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}

	return c.invoke(reg, args)
}

// invoke runs the factory with panic containment. The instance cache
// guarantees this runs at most once per (module, token).
func (c *Container) invoke(reg *registration, args []any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FactoryPanicError{
				Module: reg.module,
				Token:  reg.token,
				Panic:  r,
				Stack:  debug.Stack(),
			}
		}
	}()

	value, ferr := reg.build(args...)
	if ferr != nil {
		return nil, FactoryInvocationError{Module: reg.module, Token: reg.token, Cause: ferr}
	}
	return value, nil
}
