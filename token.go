package modkit

import "fmt"

// Token names an injectable capability. Tokens are scoped to the module that
// declares them: two modules may each register a provider under the same
// token without conflict, and importers see only the tokens the imported
// module exports.
type Token string

// String returns the token name.
func (t Token) String() string { return string(t) }

// DepRef references one declared dependency of a factory. A direct reference
// is resolved inline, before the factory runs. A lazy reference is handed to
// the factory as a *Handle that resolves the target on first use, which is
// how mutually dependent providers break their construction cycle.
type DepRef struct {
	Token Token
	Lazy  bool
}

// Dep declares a direct dependency on token.
func Dep(token Token) DepRef {
	return DepRef{Token: token}
}

// LazyDep declares a lazy dependency on token. The factory receives a
// *Handle instead of the constructed value.
func LazyDep(token Token) DepRef {
	return DepRef{Token: token, Lazy: true}
}

// String returns a readable form for error messages.
func (d DepRef) String() string {
	if d.Lazy {
		return fmt.Sprintf("lazy(%s)", d.Token)
	}
	return string(d.Token)
}

// ModuleRef references an imported module by name. Modules live in a
// name-addressed arena inside the Container, so a reference never holds a
// pointer to the imported descriptor: a direct reference is checked against
// the arena when the importing module is registered, a forward reference only
// when resolution actually walks into it. Mutually importing modules must use
// forward references on both sides.
type ModuleRef struct {
	Name string
	Lazy bool
}

// Import declares a direct import of the named module. The module must
// already be registered when the importing module is added.
func Import(name string) ModuleRef {
	return ModuleRef{Name: name}
}

// Forward declares a lazy import of the named module, evaluated on first
// resolution instead of at registration time.
func Forward(name string) ModuleRef {
	return ModuleRef{Name: name, Lazy: true}
}

// String returns a readable form for error messages.
func (m ModuleRef) String() string {
	if m.Lazy {
		return fmt.Sprintf("forward(%s)", m.Name)
	}
	return m.Name
}
