// Package chi mounts modkit controllers onto a chi router.
//
// The container carries controller route bindings as opaque data; this
// package is the HTTP collaborator that interprets them. Each binding names
// an exported method on the resolved controller instance with the standard
// handler signature:
//
//	func (c *ProductsController) List(w http.ResponseWriter, r *http.Request)
//
// Example usage:
//
//	c := modkit.New()
//	c.Register(products.Module, users.Module, reviews.Module)
//	if err := c.Build(); err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Use(modkitchi.Middleware(c))
//	if err := modkitchi.Mount(c, r); err != nil {
//	    log.Fatal(err)
//	}
package chi

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	chiv5 "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/modkit-go/modkit"
)

// Mount resolves every controller in the container and registers its route
// bindings on r.
func Mount(c *modkit.Container, r chiv5.Router) error {
	controllers, err := c.AllControllers()
	if err != nil {
		return err
	}
	return mount(controllers, r, c.Logger())
}

// MountModule mounts only the controllers declared by the named module.
func MountModule(c *modkit.Container, r chiv5.Router, module string) error {
	controllers, err := c.Controllers(module)
	if err != nil {
		return err
	}
	return mount(controllers, r, c.Logger())
}

func mount(controllers []modkit.ControllerInstance, r chiv5.Router, log *zap.Logger) error {
	for _, ctrl := range controllers {
		for _, route := range ctrl.Routes {
			h, err := handlerFor(ctrl.Value, route.Handler)
			if err != nil {
				return fmt.Errorf("controller %s:%s route %s %s: %w",
					ctrl.Module, ctrl.Token, route.Method, route.Path, err)
			}

			r.MethodFunc(route.Method, route.Path, h)
			log.Debug("mounted route",
				zap.String("module", ctrl.Module),
				zap.String("controller", string(ctrl.Token)),
				zap.String("method", route.Method),
				zap.String("path", route.Path),
			)
		}
	}
	return nil
}

// handlerFor looks up the named method on the controller instance and
// asserts the handler signature.
func handlerFor(instance any, name string) (http.HandlerFunc, error) {
	if instance == nil {
		return nil, fmt.Errorf("controller instance is nil")
	}

	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("no exported method %q on %T", name, instance)
	}

	h, ok := m.Interface().(func(http.ResponseWriter, *http.Request))
	if !ok {
		return nil, fmt.Errorf("method %q on %T is %s, want func(http.ResponseWriter, *http.Request)",
			name, instance, m.Type())
	}
	return h, nil
}

// URLParam returns a named path parameter from the request.
func URLParam(r *http.Request, key string) string {
	return chiv5.URLParam(r, key)
}

type containerKey struct{}

// Middleware attaches the container to each request's context so handlers
// can resolve additional providers with FromContext.
func Middleware(c *modkit.Container) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), containerKey{}, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the container attached by Middleware.
func FromContext(ctx context.Context) (*modkit.Container, bool) {
	c, ok := ctx.Value(containerKey{}).(*modkit.Container)
	return c, ok
}
