package modkit_test

import (
	"sync/atomic"

	"github.com/modkit-go/modkit"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// TLogger is a basic dependency-free service.
type TLogger struct {
	Name string
}

// TDatabase depends on TLogger.
type TDatabase struct {
	Logger *TLogger
}

// TService depends on TDatabase and TLogger.
type TService struct {
	DB     *TDatabase
	Logger *TLogger
}

// TUsersService is one side of the mutual-import fixtures. Its reviews side
// is held through a forward handle.
type TUsersService struct {
	Reviews *modkit.Handle
	Data    string
}

// ReviewsFor resolves the forwarded reviews service and delegates.
func (s *TUsersService) ReviewsFor(user string) (string, error) {
	reviews, err := modkit.Deref[*TReviewsService](s.Reviews)
	if err != nil {
		return "", err
	}
	return reviews.Data + " for " + user, nil
}

// TReviewsService is the other side of the mutual-import fixtures.
type TReviewsService struct {
	Users *modkit.Handle
	Data  string
}

// AuthorOf resolves the forwarded users service and delegates.
func (s *TReviewsService) AuthorOf(review string) (string, error) {
	users, err := modkit.Deref[*TUsersService](s.Users)
	if err != nil {
		return "", err
	}
	return users.Data + " wrote " + review, nil
}

// ============================================================================
// Factory Helpers
// ============================================================================

// countingFactory wraps a factory and counts invocations.
func countingFactory(calls *atomic.Int32, build modkit.Factory) modkit.Factory {
	return func(deps ...any) (any, error) {
		calls.Add(1)
		return build(deps...)
	}
}

func newLoggerFactory(deps ...any) (any, error) {
	return &TLogger{Name: "test"}, nil
}

func newDatabaseFactory(deps ...any) (any, error) {
	return &TDatabase{Logger: deps[0].(*TLogger)}, nil
}

func newServiceFactory(deps ...any) (any, error) {
	return &TService{DB: deps[0].(*TDatabase), Logger: deps[1].(*TLogger)}, nil
}

// ============================================================================
// Module Fixtures
// ============================================================================

// coreModule registers logger, database, and service with direct
// dependencies, exporting the service.
func coreModule() *modkit.Module {
	return &modkit.Module{
		Name: "core",
		Providers: []modkit.Provider{
			modkit.Provide("logger", newLoggerFactory),
			modkit.Provide("db", newDatabaseFactory, modkit.Dep("logger")),
			modkit.Provide("service", newServiceFactory, modkit.Dep("db"), modkit.Dep("logger")),
		},
		Exports: []modkit.Token{"service"},
	}
}

// cycleModules returns users and reviews modules importing each other with
// forward references, their services depending on each other lazily.
func cycleModules() (*modkit.Module, *modkit.Module) {
	users := &modkit.Module{
		Name:    "users",
		Imports: []modkit.ModuleRef{modkit.Forward("reviews")},
		Providers: []modkit.Provider{
			modkit.Provide("users.service", func(deps ...any) (any, error) {
				return &TUsersService{Reviews: deps[0].(*modkit.Handle), Data: "alice"}, nil
			}, modkit.LazyDep("reviews.service")),
		},
		Exports: []modkit.Token{"users.service"},
	}

	reviews := &modkit.Module{
		Name:    "reviews",
		Imports: []modkit.ModuleRef{modkit.Forward("users")},
		Providers: []modkit.Provider{
			modkit.Provide("reviews.service", func(deps ...any) (any, error) {
				return &TReviewsService{Users: deps[0].(*modkit.Handle), Data: "five stars"}, nil
			}, modkit.LazyDep("users.service")),
		},
		Exports: []modkit.Token{"reviews.service"},
	}

	return users, reviews
}

// eagerCycleModules is the same shape as cycleModules but with direct
// references on both sides.
func eagerCycleModules() (*modkit.Module, *modkit.Module) {
	users := &modkit.Module{
		Name:    "users",
		Imports: []modkit.ModuleRef{modkit.Forward("reviews")},
		Providers: []modkit.Provider{
			modkit.Provide("users.service", func(deps ...any) (any, error) {
				return &TUsersService{Data: "alice"}, nil
			}, modkit.Dep("reviews.service")),
		},
		Exports: []modkit.Token{"users.service"},
	}

	reviews := &modkit.Module{
		Name:    "reviews",
		Imports: []modkit.ModuleRef{modkit.Forward("users")},
		Providers: []modkit.Provider{
			modkit.Provide("reviews.service", func(deps ...any) (any, error) {
				return &TReviewsService{Data: "five stars"}, nil
			}, modkit.Dep("users.service")),
		},
		Exports: []modkit.Token{"reviews.service"},
	}

	return users, reviews
}
