package schema

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/edgeflare/pgbase/pkg/metrics"
)

const (
	reloadChannel = "pgbase"
	reloadPayload = "reload schema"
)

// Cache holds the current introspected schema plus function signatures and
// refreshes both when the database notifies the reload channel.
type Cache struct {
	pool      *pgxpool.Pool
	conn      *pgx.Conn
	logger    *zap.Logger
	tables    Snapshot
	functions map[string]Function // key: schema.function
	watch     chan Snapshot
	cancel    context.CancelFunc
	mu        sync.RWMutex

	watchMu     sync.Mutex
	watchClosed bool
}

func NewCache(pool *pgxpool.Pool, logger *zap.Logger) (*Cache, error) {
	conn, err := pool.Acquire(context.Background())
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		pool:      pool,
		conn:      conn.Hijack(),
		logger:    logger,
		tables:    make(Snapshot),
		functions: make(map[string]Function),
		watch:     make(chan Snapshot, 1),
	}, nil
}

// Init performs the initial load and starts listening for reload notifications.
func (c *Cache) Init(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.reload(ctx); err != nil {
		cancel()
		return fmt.Errorf("initial load: %w", err)
	}

	if _, err := c.conn.Exec(ctx, "LISTEN "+reloadChannel); err != nil {
		cancel()
		return fmt.Errorf("listen: %w", err)
	}

	go c.handleUpdates(ctx)
	return nil
}

func (c *Cache) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close(context.Background())
	}

	// a reload may still be publishing; closing under the same lock keeps
	// the send from racing the close
	c.watchMu.Lock()
	if !c.watchClosed {
		c.watchClosed = true
		close(c.watch)
	}
	c.watchMu.Unlock()
}

// Watch exposes snapshot updates for observers (logging, invalidation).
func (c *Cache) Watch() <-chan Snapshot {
	return c.watch
}

// Snapshot returns a copy of the cached tables safe for concurrent use.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(Snapshot, len(c.tables))
	maps.Copy(snap, c.tables)
	return snap
}

// Function returns the cached signature for schema.name.
func (c *Cache) Function(schemaName, name string) (Function, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.functions[schemaName+"."+name]
	return fn, ok
}

func (c *Cache) handleUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			notification, err := c.conn.WaitForNotification(ctx)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					c.logger.Warn("schema notification error", zap.Error(err))
					continue
				}
			}

			if notification.Payload == reloadPayload {
				if err := c.reload(ctx); err != nil {
					c.logger.Error("schema reload failed", zap.Error(err))
				}
			}
		}
	}
}

func (c *Cache) reload(ctx context.Context) error {
	tables, functions, err := loadAll(ctx, c.pool)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tables = tables
	c.functions = functions
	c.mu.Unlock()
	metrics.SchemaReloads.Inc()

	c.publish(c.Snapshot())
	return nil
}

// publish hands a snapshot to the watch channel without blocking, and never
// sends on a closed channel.
func (c *Cache) publish(snap Snapshot) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watchClosed {
		return
	}
	select {
	case c.watch <- snap:
	default:
	}
}
