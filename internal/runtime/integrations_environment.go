package runtime

import (
	"context"
	"maps"
	"os"
	goruntime "runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"

	"github.com/drblury/faultline/internal/runtime/event"
)

var hostname = sync.OnceValue(func() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
})

// EnvironmentMiddleware fills release, environment, server name, default
// tags and the runtime and os contexts. Values already present on the event
// are never overwritten.
func EnvironmentMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "environment",
		Priority: PriorityEnvironment,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				c.fillEnvironment(evt)
				return next(ctx, evt, hint)
			}, nil
		},
	}
}

func (c *Client) fillEnvironment(evt *event.Event) {
	if evt.Release == "" {
		evt.Release = c.Conf.Release
	}
	if evt.Environment == "" {
		evt.Environment = c.Conf.Environment
	}
	if evt.ServerName == "" {
		evt.ServerName = c.Conf.ServerName
		if evt.ServerName == "" && c.Conf.SendDefaultPII {
			evt.ServerName = hostname()
		}
	}
	for k, v := range c.Conf.Tags {
		if _, ok := evt.Tags[k]; !ok {
			evt.SetTag(k, v)
		}
	}

	usage := c.resources.Snapshot()
	evt.FillContext(event.ContextRuntime, "name", "go")
	evt.FillContext(event.ContextRuntime, "version", goruntime.Version())
	evt.FillContext(event.ContextRuntime, "goroutines", usage.Goroutines)
	evt.FillContext(event.ContextRuntime, "heap_bytes", usage.MemoryBytes)
	evt.FillContext(event.ContextRuntime, "gc_cycles", usage.GCCycles)
	evt.FillContext(event.ContextRuntime, "cpu_percent", usage.CPUPercent)
	evt.FillContext(event.ContextOS, "name", goruntime.GOOS)
	evt.FillContext(event.ContextOS, "arch", goruntime.GOARCH)
	evt.FillContext(event.ContextOS, "num_cpu", goruntime.NumCPU())
}

var buildModules = sync.OnceValue(func() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return moduleInventory(info)
})

func moduleInventory(info *debug.BuildInfo) map[string]string {
	modules := make(map[string]string, len(info.Deps)+1)
	if info.Main.Path != "" {
		modules[info.Main.Path] = moduleVersion(&info.Main)
	}
	for _, dep := range info.Deps {
		modules[dep.Path] = moduleVersion(dep)
	}
	return modules
}

// moduleVersion shortens pseudo-versions to "<base>+<revision>" and reports
// directory replacements as "local".
func moduleVersion(m *debug.Module) string {
	if m.Replace != nil {
		if m.Replace.Version == "" {
			return "local"
		}
		m = m.Replace
	}
	v := m.Version
	if !semver.IsValid(v) || !module.IsPseudoVersion(v) {
		return v
	}
	rev, err := module.PseudoVersionRev(v)
	if err != nil {
		return v
	}
	base, err := module.PseudoVersionBase(v)
	if err != nil || base == "" {
		base = "v0.0.0"
	}
	return base + "+" + rev
}

// ModulesMiddleware attaches the module inventory of the running binary.
// Build info is read once per process.
func ModulesMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "modules",
		Priority: PriorityModules,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				if evt.Modules == nil {
					if modules := buildModules(); len(modules) > 0 {
						evt.Modules = maps.Clone(modules)
					}
				}
				return next(ctx, evt, hint)
			}, nil
		},
	}
}
