// Comparative benchmarks against other DI libraries.
//
// Run with: go test -bench=Comparison -benchmem .
package modkit_test

import (
	"testing"

	"github.com/samber/do/v2"
	"go.uber.org/dig"

	"github.com/modkit-go/modkit"
)

type cmpLogger struct {
	Name string
}

func newCmpLogger() *cmpLogger {
	return &cmpLogger{Name: "logger"}
}

type cmpConfig struct {
	Value string
}

func newCmpConfig() *cmpConfig {
	return &cmpConfig{Value: "config"}
}

type cmpDatabase struct {
	Logger *cmpLogger
	Config *cmpConfig
}

func newCmpDatabase(logger *cmpLogger, config *cmpConfig) *cmpDatabase {
	return &cmpDatabase{Logger: logger, Config: config}
}

type cmpUserService struct {
	Logger   *cmpLogger
	Config   *cmpConfig
	Database *cmpDatabase
}

func newCmpUserService(logger *cmpLogger, config *cmpConfig, db *cmpDatabase) *cmpUserService {
	return &cmpUserService{Logger: logger, Config: config, Database: db}
}

func cmpModule() *modkit.Module {
	return &modkit.Module{
		Name: "app",
		Providers: []modkit.Provider{
			modkit.Provide("logger", func(deps ...any) (any, error) {
				return newCmpLogger(), nil
			}),
			modkit.Provide("config", func(deps ...any) (any, error) {
				return newCmpConfig(), nil
			}),
			modkit.Provide("database", func(deps ...any) (any, error) {
				return newCmpDatabase(deps[0].(*cmpLogger), deps[1].(*cmpConfig)), nil
			}, modkit.Dep("logger"), modkit.Dep("config")),
			modkit.Provide("users.service", func(deps ...any) (any, error) {
				return newCmpUserService(deps[0].(*cmpLogger), deps[1].(*cmpConfig), deps[2].(*cmpDatabase)), nil
			}, modkit.Dep("logger"), modkit.Dep("config"), modkit.Dep("database")),
		},
	}
}

func provideDo(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*cmpLogger, error) { return newCmpLogger(), nil })
	do.Provide(injector, func(i do.Injector) (*cmpConfig, error) { return newCmpConfig(), nil })
	do.Provide(injector, func(i do.Injector) (*cmpDatabase, error) {
		return newCmpDatabase(do.MustInvoke[*cmpLogger](i), do.MustInvoke[*cmpConfig](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*cmpUserService, error) {
		return newCmpUserService(
			do.MustInvoke[*cmpLogger](i),
			do.MustInvoke[*cmpConfig](i),
			do.MustInvoke[*cmpDatabase](i),
		), nil
	})
}

func BenchmarkComparisonBuild_Modkit(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := modkit.New()
		if err := c.Register(cmpModule()); err != nil {
			b.Fatal(err)
		}
		if err := c.Build(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkComparisonBuild_Dig(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := dig.New()
		c.Provide(newCmpLogger)
		c.Provide(newCmpConfig)
		c.Provide(newCmpDatabase)
		c.Provide(newCmpUserService)
	}
}

func BenchmarkComparisonBuild_Do(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		injector := do.New()
		provideDo(injector)
		injector.Shutdown()
	}
}

func BenchmarkComparisonResolve_Modkit(b *testing.B) {
	c := modkit.New()
	if err := c.Register(cmpModule()); err != nil {
		b.Fatal(err)
	}
	if err := c.Build(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := c.Resolve("app", "users.service"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkComparisonResolve_Dig(b *testing.B) {
	c := dig.New()
	c.Provide(newCmpLogger)
	c.Provide(newCmpConfig)
	c.Provide(newCmpDatabase)
	c.Provide(newCmpUserService)

	// Warm up
	c.Invoke(func(u *cmpUserService) {})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Invoke(func(u *cmpUserService) {})
	}
}

func BenchmarkComparisonResolve_Do(b *testing.B) {
	injector := do.New()
	provideDo(injector)

	// Warm up
	do.MustInvoke[*cmpUserService](injector)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = do.MustInvoke[*cmpUserService](injector)
	}
}
