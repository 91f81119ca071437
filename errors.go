package modkit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modkit-go/modkit/internal/graph"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// Base errors that get wrapped in typed errors when returned. Never handed
// to callers bare - always with the module and token that triggered them.

var (
	// Static graph defects.
	ErrModuleNotFound  = errors.New("module not registered")
	ErrModuleRedefined = errors.New("module already registered under this name")
	ErrDuplicateToken  = errors.New("token already registered in this module")
	ErrUnknownExport   = errors.New("exported token has no registration in this module")
	ErrAmbiguousExport = errors.New("token exported by more than one imported module")

	// Registration shape defects.
	ErrEmptyModuleName = errors.New("module name cannot be empty")
	ErrEmptyToken      = errors.New("token cannot be empty")
	ErrNilFactory      = errors.New("provider factory cannot be nil")
	ErrFactoryAndValue = errors.New("provider cannot declare both a factory and a value")

	// Container lifecycle.
	ErrAlreadyBuilt = errors.New("container has already been built")
)

var (
	_ error = ConfigurationError{}
	_ error = UnresolvedDependencyError{}
	_ error = FactoryInvocationError{}
	_ error = FactoryPanicError{}
	_ error = MaxDepthError{}
	_ error = BuildError{}
)

// CircularResolutionError reports a genuine eager cycle: either a cycle of
// direct dependency references found at build time, or a forward handle that
// resolved back into a registration still under construction. Fatal, never
// retried.
type CircularResolutionError = graph.CycleError

// ========================================
// Typed Errors for Rich Context
// ========================================

// ConfigurationError indicates a static defect in the module graph: a
// missing or redefined module, a duplicate registration, an export that
// names nothing, or an ambiguous export. The process must not start.
type ConfigurationError struct {
	Module string
	Cause  error
}

func (e ConfigurationError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("configuration error: %v", e.Cause)
	}
	return fmt.Sprintf("configuration error in module %q: %v", e.Module, e.Cause)
}

func (e ConfigurationError) Unwrap() error {
	return e.Cause
}

// UnresolvedDependencyError indicates a token with no registration visible
// from the requesting module: not registered there, and not exported by any
// imported module.
type UnresolvedDependencyError struct {
	Module string
	Token  Token

	// Visible lists tokens that are resolvable from the requesting module,
	// used to suggest likely misspellings.
	Visible []Token
}

func (e UnresolvedDependencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "token %q is not visible from module %q", e.Token, e.Module)

	if similar := findSimilarTokens(e.Token, e.Visible); len(similar) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, t := range similar {
			fmt.Fprintf(&b, "  - %s\n", t)
		}
	}

	b.WriteString("\nRegister the token in this module or export it from an imported module.")
	return b.String()
}

// findSimilarTokens suggests visible tokens whose names resemble the missing
// one: a case-insensitive substring match either way, or an edit distance of
// at most two for typos.
func findSimilarTokens(target Token, visible []Token) []Token {
	if target == "" || len(visible) == 0 {
		return nil
	}

	lower := strings.ToLower(string(target))
	var similar []Token
	for _, t := range visible {
		if t == target {
			continue
		}

		candidate := strings.ToLower(string(t))
		if strings.Contains(candidate, lower) ||
			strings.Contains(lower, candidate) ||
			editDistance(lower, candidate) <= 2 {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// FactoryInvocationError wraps an error returned by a provider factory.
type FactoryInvocationError struct {
	Module string
	Token  Token
	Cause  error
}

func (e FactoryInvocationError) Error() string {
	return fmt.Sprintf("factory for %s:%s failed: %v", e.Module, e.Token, e.Cause)
}

func (e FactoryInvocationError) Unwrap() error {
	return e.Cause
}

// FactoryPanicError indicates a provider factory panicked during
// construction. The panic value and stack are captured for diagnosis.
type FactoryPanicError struct {
	Module string
	Token  Token
	Panic  any
	Stack  []byte
}

func (e FactoryPanicError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "factory for %s:%s panicked: %v\n", e.Module, e.Token, e.Panic)
	b.WriteString("\nFactories should be pure wiring; move failure-prone work behind an error return.\n")

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// MaxDepthError indicates resolution exceeded the configured depth limit,
// usually a sign of a very deep (or unintentionally recursive) graph.
type MaxDepthError struct {
	Module   string
	Token    Token
	Depth    int
	MaxDepth int
}

func (e MaxDepthError) Error() string {
	return fmt.Sprintf("resolving %s:%s exceeded maximum depth %d", e.Module, e.Token, e.MaxDepth)
}

// BuildError aggregates everything that went wrong during Build. The dry run
// keeps going after a failure so one pass reports every defective
// registration instead of the first.
type BuildError struct {
	Phase  string // "validate", "graph", "dry-run"
	Errors []error
}

func (e BuildError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("build failed during %s: %v", e.Phase, e.Errors[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "build failed during %s with %d errors:", e.Phase, len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  %d. %v", i+1, err)
	}
	return b.String()
}

func (e BuildError) Unwrap() []error {
	return e.Errors
}

// wrapToken annotates a sentinel error with the offending token.
func wrapToken(t Token, err error) error {
	return fmt.Errorf("token %q: %w", t, err)
}
