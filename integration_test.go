package modkit_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/modkit-go/modkit"
	"github.com/modkit-go/modkit/repo"
)

// The integration fixtures model a small storefront: a products module with a
// repository and a controller, plus mutually dependent users and reviews
// modules wired through forward imports.

type productEntity struct {
	ID   string
	Name string
}

func (p *productEntity) GetID() string   { return p.ID }
func (p *productEntity) SetID(id string) { p.ID = id }

type productsService struct {
	log  *zap.Logger
	repo repo.Repository[*productEntity]
}

func (s *productsService) Add(ctx context.Context, name string) (*productEntity, error) {
	s.log.Debug("adding product", zap.String("name", name))
	return s.repo.Create(ctx, &productEntity{Name: name})
}

func (s *productsService) All(ctx context.Context) ([]*productEntity, error) {
	return s.repo.Find(ctx, nil)
}

type productsController struct {
	svc *productsService
}

func (c *productsController) List(w http.ResponseWriter, r *http.Request) {}

type profileService struct {
	products *productsService
	reviews  *modkit.Handle
}

func (s *profileService) Summary(ctx context.Context, user string) (string, error) {
	reviewsSvc, err := modkit.Deref[*reviewService](s.reviews)
	if err != nil {
		return "", err
	}

	items, err := s.products.All(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %d products, %d reviews", user, len(items), reviewsSvc.count(user)), nil
}

type reviewService struct {
	byUser map[string]int
	users  *modkit.Handle
}

func (s *reviewService) count(user string) int { return s.byUser[user] }

func (s *reviewService) reviewerProfile(ctx context.Context, user string) (string, error) {
	profile, err := modkit.Deref[*profileService](s.users)
	if err != nil {
		return "", err
	}
	return profile.Summary(ctx, user)
}

func storefrontModules(t *testing.T) []*modkit.Module {
	t.Helper()

	logger := zaptest.NewLogger(t)

	products := &modkit.Module{
		Name: "products",
		Providers: []modkit.Provider{
			modkit.Supply("logger", logger),
			modkit.Provide("products.repository", func(deps ...any) (any, error) {
				return repo.NewMemory[*productEntity](), nil
			}),
			modkit.Provide("products.service", func(deps ...any) (any, error) {
				return &productsService{
					log:  deps[0].(*zap.Logger),
					repo: deps[1].(repo.Repository[*productEntity]),
				}, nil
			}, modkit.Dep("logger"), modkit.Dep("products.repository")),
		},
		Controllers: []modkit.Controller{
			modkit.NewController("products.controller",
				func(deps ...any) (any, error) {
					return &productsController{svc: deps[0].(*productsService)}, nil
				},
				[]modkit.Route{{Method: http.MethodGet, Path: "/products", Handler: "List"}},
				modkit.Dep("products.service"),
			),
		},
		Exports: []modkit.Token{"products.service"},
	}

	users := &modkit.Module{
		Name: "users",
		Imports: []modkit.ModuleRef{
			modkit.Import("products"),
			modkit.Forward("reviews"),
		},
		Providers: []modkit.Provider{
			modkit.Provide("users.profile", func(deps ...any) (any, error) {
				return &profileService{
					products: deps[0].(*productsService),
					reviews:  deps[1].(*modkit.Handle),
				}, nil
			}, modkit.Dep("products.service"), modkit.LazyDep("reviews.service")),
		},
		Exports: []modkit.Token{"users.profile"},
	}

	reviews := &modkit.Module{
		Name:    "reviews",
		Imports: []modkit.ModuleRef{modkit.Forward("users")},
		Providers: []modkit.Provider{
			modkit.Provide("reviews.service", func(deps ...any) (any, error) {
				return &reviewService{
					byUser: map[string]int{"alice": 2},
					users:  deps[0].(*modkit.Handle),
				}, nil
			}, modkit.LazyDep("users.profile")),
		},
		Exports: []modkit.Token{"reviews.service"},
	}

	return []*modkit.Module{products, users, reviews}
}

func TestIntegration_Storefront(t *testing.T) {
	t.Parallel()

	c := modkit.New()
	require.NoError(t, c.Register(storefrontModules(t)...))
	require.NoError(t, c.Build())

	ctx := context.Background()

	svc, err := modkit.ResolveAs[*productsService](c, "products", "products.service")
	require.NoError(t, err)

	_, err = svc.Add(ctx, "gameboy")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "walkman")
	require.NoError(t, err)

	t.Run("lazy chain crosses both module boundaries", func(t *testing.T) {
		profile, err := modkit.ResolveAs[*profileService](c, "users", "users.profile")
		require.NoError(t, err)

		summary, err := profile.Summary(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice: 2 products, 2 reviews", summary)
	})

	t.Run("reverse direction shares the same instances", func(t *testing.T) {
		reviewsSvc, err := modkit.ResolveAs[*reviewService](c, "reviews", "reviews.service")
		require.NoError(t, err)

		summary, err := reviewsSvc.reviewerProfile(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice: 2 products, 2 reviews", summary)

		profile, err := modkit.ResolveAs[*profileService](c, "users", "users.profile")
		require.NoError(t, err)
		back, err := modkit.Deref[*reviewService](profile.reviews)
		require.NoError(t, err)
		assert.Same(t, reviewsSvc, back)
	})

	t.Run("controllers are listed with their routes", func(t *testing.T) {
		ctrls, err := c.Controllers("products")
		require.NoError(t, err)
		require.Len(t, ctrls, 1)
		assert.Equal(t, modkit.Token("products.controller"), ctrls[0].Token)
		require.Len(t, ctrls[0].Routes, 1)
		assert.Equal(t, "/products", ctrls[0].Routes[0].Path)
		assert.IsType(t, &productsController{}, ctrls[0].Value)
	})

	t.Run("repository is private to products", func(t *testing.T) {
		_, err := c.Resolve("users", "products.repository")
		var unresolved modkit.UnresolvedDependencyError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "users", unresolved.Module)
	})

	t.Run("graph export names every registration", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, c.WriteGraph(&sb))
		out := sb.String()
		assert.Contains(t, out, "products:products.service")
		assert.Contains(t, out, "users:users.profile")
		// Lazy references are not graph edges.
		assert.NotContains(t, out, "reviews:users.profile")
	})
}

func TestIntegration_ConcurrentResolution(t *testing.T) {
	t.Parallel()

	c := modkit.New(modkit.WithDeferredResolution())
	require.NoError(t, c.Register(storefrontModules(t)...))
	require.NoError(t, c.Build())

	var wg sync.WaitGroup
	instances := make([]*profileService, 16)
	for i := range instances {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc, err := modkit.ResolveAs[*profileService](c, "users", "users.profile")
			assert.NoError(t, err)
			instances[i] = svc
		}()
	}
	wg.Wait()

	for _, svc := range instances[1:] {
		assert.Same(t, instances[0], svc)
	}
}
