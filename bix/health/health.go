package health

import (
	"context"
	"sync"
	"time"

	"github.com/caresuite/bix-app/bix/adapters"
	"github.com/caresuite/bix-app/bix/models"
	"github.com/caresuite/bix-app/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

type statusCache struct {
	statuses  []models.HealthStatus
	timestamp time.Time
	mu        sync.RWMutex
}

// HealthChecker aggregates the database and every registered adapter
// into one report. Adapter probes hit remote systems, so results are
// cached for a short TTL.
type HealthChecker struct {
	pool        *pgxpool.Pool
	adapterList []adapters.Adapter
	cache       *statusCache
}

const adapterCacheTTL = 5 * time.Minute

func NewHealthChecker(pool *pgxpool.Pool, adapterList ...adapters.Adapter) HealthChecker {
	return HealthChecker{
		pool:        pool,
		adapterList: adapterList,
		cache:       &statusCache{},
	}
}

func (h HealthChecker) IsDatabaseOK(ctx context.Context) (result string, ok bool) {
	if h.pool == nil {
		return "database not configured", false
	}
	if err := h.pool.Ping(ctx); err != nil {
		log.API.Error("Health check: database ping error: ", err.Error())
		return "database ping error", false
	}

	return "ok", true
}

// AdapterStatuses probes every registered adapter, serving from cache
// while the TTL holds.
func (h HealthChecker) AdapterStatuses(ctx context.Context) []models.HealthStatus {
	h.cache.mu.RLock()
	if h.cache.timestamp.Add(adapterCacheTTL).After(time.Now()) {
		statuses := h.cache.statuses
		h.cache.mu.RUnlock()
		return statuses
	}
	h.cache.mu.RUnlock()

	h.cache.mu.Lock()
	defer h.cache.mu.Unlock()

	// Double-check after acquiring write lock
	if h.cache.timestamp.Add(adapterCacheTTL).After(time.Now()) {
		return h.cache.statuses
	}

	statuses := make([]models.HealthStatus, 0, len(h.adapterList))
	for _, a := range h.adapterList {
		statuses = append(statuses, a.CheckHealth(ctx))
	}

	h.cache.statuses = statuses
	h.cache.timestamp = time.Now()
	return statuses
}

// IsHealthy is true when the database and every adapter probe pass.
func (h HealthChecker) IsHealthy(ctx context.Context) bool {
	if _, ok := h.IsDatabaseOK(ctx); !ok {
		return false
	}
	for _, s := range h.AdapterStatuses(ctx) {
		if !s.Healthy {
			return false
		}
	}
	return true
}
