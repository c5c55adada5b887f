package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultClientTTL is how long an untouched client survives.
const DefaultClientTTL = 2 * time.Hour

// Registry owns the controllers of all connected clients. Idle clients expire and are disposed.
type Registry struct {
	deps    Deps
	clients *cache.Cache
	logger  *zap.Logger
}

func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultClientTTL
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := &Registry{
		deps:    deps,
		clients: cache.New(ttl, ttl/2),
		logger:  deps.Logger,
	}
	r.clients.OnEvicted(func(id string, v interface{}) {
		if ctrl, ok := v.(*Controller); ok {
			ctrl.Dispose()
			r.logger.Debug("Client evicted", zap.String("client_id", id))
		}
	})
	return r
}

// Create registers a new client, signing it in from token when one is given.
func (r *Registry) Create(ctx context.Context, token string) (*Controller, error) {
	ctrl := NewController(uuid.NewString(), r.deps)
	if err := ctrl.Restore(ctx, token); err != nil {
		ctrl.Dispose()
		return nil, err
	}
	r.clients.Set(ctrl.ID(), ctrl, cache.DefaultExpiration)
	return ctrl, nil
}

// Get looks a client up and extends its lifetime.
func (r *Registry) Get(id string) (*Controller, bool) {
	v, ok := r.clients.Get(id)
	if !ok {
		return nil, false
	}
	ctrl := v.(*Controller)
	// Replace fails once the entry is gone, so a concurrent Delete is not undone
	_ = r.clients.Replace(id, ctrl, cache.DefaultExpiration)
	return ctrl, true
}

func (r *Registry) Delete(id string) bool {
	if _, ok := r.clients.Get(id); !ok {
		return false
	}
	r.clients.Delete(id)
	return true
}

func (r *Registry) Len() int {
	return r.clients.ItemCount()
}

// Close disposes every client.
func (r *Registry) Close() {
	for id := range r.clients.Items() {
		r.clients.Delete(id)
	}
}
