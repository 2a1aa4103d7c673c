package refdata

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lookup is the read-only reference-data capability injected into the engine.
// It exists so validation lookups don't reach for ambient global state.
type Lookup interface {
	CurrencyExists(ctx context.Context, code string) (bool, error)
}

// PGLookup serves reference lookups from the currencies table, caching
// positive answers. Reference rows are seeded by migration and never
// removed, so the cache needs no invalidation.
type PGLookup struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	known map[string]struct{}
}

func NewPGLookup(pool *pgxpool.Pool) *PGLookup {
	return &PGLookup{pool: pool, known: make(map[string]struct{})}
}

func (l *PGLookup) CurrencyExists(ctx context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return false, nil
	}

	l.mu.RLock()
	_, hit := l.known[code]
	l.mu.RUnlock()
	if hit {
		return true, nil
	}

	var exists bool
	err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM currencies WHERE code = $1 AND is_active)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("refdata: currency lookup: %w", err)
	}
	if exists {
		l.mu.Lock()
		l.known[code] = struct{}{}
		l.mu.Unlock()
	}
	return exists, nil
}

// Static is a fixed in-memory Lookup for tests and wiring without a database.
type Static struct {
	Currencies []string
}

func (s Static) CurrencyExists(_ context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range s.Currencies {
		if strings.ToUpper(c) == code {
			return true, nil
		}
	}
	return false, nil
}
