package access

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

// Level tells whether a resolved policy came from the route or its group.
type Level string

const (
	LevelNone  Level = "public"
	LevelGroup Level = "group"
	LevelRoute Level = "route"
)

type entry struct {
	group *Policy
	route *Policy
}

// RouteInfo describes one registered route and its effective policy.
type RouteInfo struct {
	Method string
	Path   string
	Level  Level
	Roles  []string
}

// Registry records the policy of each route as it is added to Echo.
type Registry struct {
	e *echo.Echo

	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry(e *echo.Echo) *Registry {
	return &Registry{e: e, entries: make(map[string]entry)}
}

func key(method, path string) string {
	return method + " " + path
}

// Group opens a route group under prefix. A nil policy leaves the group's
// routes public unless a route declares its own policy.
func (r *Registry) Group(prefix string, policy *Policy, m ...echo.MiddlewareFunc) *Group {
	return &Group{
		registry: r,
		policy:   policy,
		echo:     r.e.Group(prefix, m...),
	}
}

// Resolve returns the policy for a route template. The route-level policy
// wins over the group policy; ok is false when neither exists.
func (r *Registry) Resolve(method, path string) (policy *Policy, level Level, ok bool) {
	r.mu.RLock()
	ent, found := r.entries[key(method, path)]
	r.mu.RUnlock()

	switch {
	case !found:
		return nil, LevelNone, false
	case ent.route != nil:
		return ent.route, LevelRoute, true
	case ent.group != nil:
		return ent.group, LevelGroup, true
	default:
		return nil, LevelNone, false
	}
}

// Routes lists every registered route sorted by path then method.
func (r *Registry) Routes() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RouteInfo, 0, len(r.entries))
	for k := range r.entries {
		method, path, _ := strings.Cut(k, " ")
		info := RouteInfo{Method: method, Path: path, Level: LevelNone}
		if p, level, ok := r.resolveLocked(k); ok {
			info.Level = level
			info.Roles = p.Roles()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Registry) resolveLocked(k string) (*Policy, Level, bool) {
	ent := r.entries[k]
	if ent.route != nil {
		return ent.route, LevelRoute, true
	}
	if ent.group != nil {
		return ent.group, LevelGroup, true
	}
	return nil, LevelNone, false
}

// Verify fails when an Echo route under prefix was added without going
// through the registry. Run it once all routes are registered.
func (r *Registry) Verify(prefix string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, rt := range r.e.Routes() {
		if !strings.HasPrefix(rt.Path, prefix) || rt.Method == echo.RouteNotFound {
			continue
		}
		if _, ok := r.entries[key(rt.Method, rt.Path)]; !ok {
			missing = append(missing, key(rt.Method, rt.Path))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("access: routes without a declared policy entry: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r *Registry) record(method, path string, group, route *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key(method, path)] = entry{group: group, route: route}
}

// Group adds routes to an Echo group while recording their policies.
type Group struct {
	registry *Registry
	policy   *Policy
	echo     *echo.Group
}

type routeConfig struct {
	policy     *Policy
	middleware []echo.MiddlewareFunc
}

// RouteOption customises a single route.
type RouteOption func(*routeConfig)

// WithPolicy attaches a route-level policy that overrides the group's.
func WithPolicy(p *Policy) RouteOption {
	return func(c *routeConfig) { c.policy = p }
}

// WithMiddleware adds route-specific middleware.
func WithMiddleware(m ...echo.MiddlewareFunc) RouteOption {
	return func(c *routeConfig) { c.middleware = append(c.middleware, m...) }
}

func (g *Group) Add(method, path string, h echo.HandlerFunc, opts ...RouteOption) *echo.Route {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	route := g.echo.Add(method, path, h, cfg.middleware...)
	g.registry.record(method, route.Path, g.policy, cfg.policy)
	return route
}

func (g *Group) GET(path string, h echo.HandlerFunc, opts ...RouteOption) *echo.Route {
	return g.Add(http.MethodGet, path, h, opts...)
}

func (g *Group) POST(path string, h echo.HandlerFunc, opts ...RouteOption) *echo.Route {
	return g.Add(http.MethodPost, path, h, opts...)
}

func (g *Group) PUT(path string, h echo.HandlerFunc, opts ...RouteOption) *echo.Route {
	return g.Add(http.MethodPut, path, h, opts...)
}

func (g *Group) DELETE(path string, h echo.HandlerFunc, opts ...RouteOption) *echo.Route {
	return g.Add(http.MethodDelete, path, h, opts...)
}
