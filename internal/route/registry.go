package route

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpFarm/internal/auth"
)

var (
	ErrDuplicateRoute     = errors.New("route already added")
	ErrInvalidDestination = errors.New("set route to stable")
	ErrRouteNotFound      = errors.New("route not found")
	ErrIndexOutOfRange    = errors.New("route index out of range")
)

// Route is an approved price path. Path always ends at the stable asset.
type Route struct {
	Path   []common.Address
	Active bool
}

// Token is the asset the route prices.
func (r Route) Token() common.Address {
	return r.Path[0]
}

// LastHop is the token swapped into the stable asset on the final hop.
func (r Route) LastHop() common.Address {
	if len(r.Path) < 2 {
		return r.Path[0]
	}
	return r.Path[len(r.Path)-2]
}

func (r Route) String() string {
	parts := make([]string, len(r.Path))
	for i, addr := range r.Path {
		parts[i] = addr.Hex()
	}
	return strings.Join(parts, ">")
}

func (r Route) clone() Route {
	return Route{Path: append([]common.Address(nil), r.Path...), Active: r.Active}
}

// Registry stores routes in insertion order. Routes are never removed.
type Registry struct {
	owner  *auth.Capability
	stable common.Address
	logger *zap.Logger

	mu     sync.RWMutex
	routes []Route
	byPath map[string]int
}

func NewRegistry(owner *auth.Capability, stable common.Address, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		owner:  owner,
		stable: stable,
		logger: logger,
		byPath: make(map[string]int),
	}
}

// Stable returns the asset every route terminates in.
func (r *Registry) Stable() common.Address {
	return r.stable
}

// AddRoute stores path as an active route.
func (r *Registry) AddRoute(caller *auth.Capability, path []common.Address) error {
	if err := auth.Check(r.owner, caller); err != nil {
		return fmt.Errorf("add route: %w", err)
	}
	if len(path) == 0 || path[len(path)-1] != r.stable {
		return fmt.Errorf("add route: %w", ErrInvalidDestination)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pathKey(path)
	if _, ok := r.byPath[key]; ok {
		return fmt.Errorf("add route: %w", ErrDuplicateRoute)
	}
	route := Route{Path: append([]common.Address(nil), path...), Active: true}
	r.byPath[key] = len(r.routes)
	r.routes = append(r.routes, route)

	r.logger.Info("route added", zap.String("route", route.String()), zap.Int("index", len(r.routes)-1))
	return nil
}

// SetActive toggles the route stored under exactly path.
func (r *Registry) SetActive(caller *auth.Capability, path []common.Address, active bool) error {
	if err := auth.Check(r.owner, caller); err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byPath[pathKey(path)]
	if !ok {
		return fmt.Errorf("set active: %w", ErrRouteNotFound)
	}
	r.routes[idx].Active = active

	r.logger.Info("route activation changed", zap.String("route", r.routes[idx].String()), zap.Bool("active", active))
	return nil
}

// GetRoute returns a copy of the route stored under path.
func (r *Registry) GetRoute(path []common.Address) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byPath[pathKey(path)]
	if !ok {
		return Route{}, ErrRouteNotFound
	}
	return r.routes[idx].clone(), nil
}

func (r *Registry) RouteByIndex(i int) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.routes) {
		return Route{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return r.routes[i].clone(), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Routes returns copies of every route in insertion order.
func (r *Registry) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, len(r.routes))
	for i, route := range r.routes {
		out[i] = route.clone()
	}
	return out
}

// ActiveRoutesFrom returns the active routes whose leading hop is token, in insertion order.
func (r *Registry) ActiveRoutesFrom(token common.Address) []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Route
	for _, route := range r.routes {
		if route.Active && route.Token() == token {
			out = append(out, route.clone())
		}
	}
	return out
}

// Checkpoint captures the stored routes and returns a function that restores them.
func (r *Registry) Checkpoint() func() {
	r.mu.RLock()
	routes := make([]Route, len(r.routes))
	for i, route := range r.routes {
		routes[i] = route.clone()
	}
	byPath := make(map[string]int, len(r.byPath))
	for k, v := range r.byPath {
		byPath[k] = v
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.routes = routes
		r.byPath = byPath
		r.mu.Unlock()
	}
}

func pathKey(path []common.Address) string {
	var b strings.Builder
	b.Grow(len(path) * common.AddressLength)
	for _, addr := range path {
		b.Write(addr.Bytes())
	}
	return b.String()
}
