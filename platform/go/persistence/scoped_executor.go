package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/platform/go/metrics"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

const (
	DefaultAcquireTimeout = 5 * time.Second
	resetTimeout          = 2 * time.Second
)

var tracer = otel.Tracer("github.com/zenGate-Global/schoolspace/platform/go/persistence")

// Querier is the statement surface shared by bound connections and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pooledConn is a checked-out connection. Release returns it to the pool;
// Destroy closes it so its session state can never reach another caller.
type pooledConn interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Release()
	Destroy(ctx context.Context)
}

type connPool interface {
	Acquire(ctx context.Context) (pooledConn, error)
}

type pgxConnPool struct{ pool *pgxpool.Pool }

func (p pgxConnPool) Acquire(ctx context.Context) (pooledConn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pgxConn{c}, nil
}

type pgxConn struct{ *pgxpool.Conn }

func (c pgxConn) Destroy(ctx context.Context) {
	conn := c.Hijack()
	_ = conn.Close(ctx)
}

// ScopedExecutorConfig wires a ScopedExecutor.
type ScopedExecutorConfig struct {
	Pool           *pgxpool.Pool
	SharedSchema   string
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

// ScopedExecutor runs statements on pooled connections bound to the namespace
// carried by the call's context. Acquiring and binding happen as one step; callers
// never see an unbound connection, and every connection is reset to the shared
// namespace before it goes back to the pool.
type ScopedExecutor struct {
	pool           connPool
	sharedSchema   string
	acquireTimeout time.Duration
	logger         *zap.Logger
}

func NewScopedExecutor(cfg ScopedExecutorConfig) *ScopedExecutor {
	if cfg.Pool == nil {
		panic("ScopedExecutor requires pool")
	}
	return newScopedExecutor(pgxConnPool{pool: cfg.Pool}, cfg.SharedSchema, cfg.AcquireTimeout, cfg.Logger)
}

func newScopedExecutor(pool connPool, sharedSchema string, acquireTimeout time.Duration, logger *zap.Logger) *ScopedExecutor {
	sharedSchema = strings.TrimSpace(sharedSchema)
	if err := tenant.ValidateNamespace(sharedSchema); err != nil {
		panic(fmt.Sprintf("ScopedExecutor shared schema: %v", err))
	}
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopedExecutor{pool: pool, sharedSchema: sharedSchema, acquireTimeout: acquireTimeout, logger: logger}
}

// SharedSchema returns the namespace used for platform-level statements.
func (e *ScopedExecutor) SharedSchema() string { return e.sharedSchema }

// ForShared returns a context whose statements target the shared namespace. The
// bypass flag of an existing scope is preserved.
func ForShared(ctx context.Context) context.Context {
	scope := tenant.SharedScope()
	if current, ok := tenant.FromContext(ctx); ok {
		scope.Bypass = current.Bypass
	}
	return tenant.WithScope(ctx, scope)
}

// QueryOne runs sql and hands the single resulting row to scan. A query that
// matches nothing yields ErrRowNotFound.
func (e *ScopedExecutor) QueryOne(ctx context.Context, scan func(pgx.Row) error, sql string, args ...any) error {
	return e.withBoundConn(ctx, "query_one", func(ctx context.Context, q Querier) error {
		return scan(q.QueryRow(ctx, sql, args...))
	})
}

// QueryMany runs sql and hands each row to scan.
func (e *ScopedExecutor) QueryMany(ctx context.Context, scan func(pgx.Rows) error, sql string, args ...any) error {
	return e.withBoundConn(ctx, "query_many", func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// Execute runs a statement that returns no rows and reports the affected row count.
func (e *ScopedExecutor) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	var affected int64
	err := e.withBoundConn(ctx, "execute", func(ctx context.Context, q Querier) error {
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// WithTx runs fn inside a transaction on one bound connection. The binding is
// transaction-local, so it ends with the transaction whatever fn does.
func (e *ScopedExecutor) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return e.run(ctx, "tx", true, func(ctx context.Context, conn pooledConn, bind func(Querier) error) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return wrapStore("begin tx", "", err)
		}
		defer tx.Rollback(ctx) // nolint:errcheck

		if err := bind(tx); err != nil {
			return err
		}

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// CollectOne maps exactly one row onto T by column name.
func CollectOne[T any](ctx context.Context, e *ScopedExecutor, sql string, args ...any) (T, error) {
	var out T
	err := e.withBoundConn(ctx, "collect_one", func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
		return err
	})
	return out, err
}

// CollectMany maps every row onto T by column name.
func CollectMany[T any](ctx context.Context, e *ScopedExecutor, sql string, args ...any) ([]T, error) {
	var out []T
	err := e.withBoundConn(ctx, "collect_many", func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[T])
		return err
	})
	return out, err
}

// withBoundConn runs fn on a connection with a session-level binding.
func (e *ScopedExecutor) withBoundConn(ctx context.Context, op string, fn func(ctx context.Context, q Querier) error) error {
	return e.run(ctx, op, false, func(ctx context.Context, conn pooledConn, bind func(Querier) error) error {
		if err := bind(conn); err != nil {
			return err
		}
		return fn(ctx, conn)
	})
}

// run owns the connection lifecycle: resolve the namespace, acquire, hand the
// connection to body together with a bind function, then reset and release it
// exactly once whatever body does, panics included.
func (e *ScopedExecutor) run(ctx context.Context, op string, txLocal bool, body func(ctx context.Context, conn pooledConn, bind func(Querier) error) error) (err error) {
	namespace, err := e.namespaceFor(ctx)
	if err != nil {
		return err
	}

	// Validate before any connection is taken so a rejected identifier costs nothing.
	bindSQL, bindArgs, err := namespaceBinding(namespace, txLocal)
	if err != nil {
		e.logger.Error("refusing to bind invalid namespace", zap.String("op", op), zap.Error(err))
		return err
	}

	ctx, span := tracer.Start(ctx, "db."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.namespace", namespace),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op)
		}
		span.End()
	}()

	conn, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	discard := false
	defer func() {
		e.release(conn, op, discard)
	}()

	bind := func(q Querier) error {
		if _, err := q.Exec(ctx, bindSQL, bindArgs...); err != nil {
			metrics.NamespaceBindFailures.Inc()
			discard = true
			return wrapStore("bind namespace", namespace, err)
		}
		return nil
	}

	if err = body(ctx, conn, bind); err != nil {
		err = classify(op, namespace, err)
		var dae *DataAccessError
		if errors.As(err, &dae) {
			e.logger.Error("data access failed", zap.String("op", dae.Op), zap.String("namespace", namespace), zap.String("cause", dae.Cause()))
		}
		return err
	}
	return nil
}

// namespaceFor picks the namespace for the context's scope. A context without any
// scope is ambiguous and refused; the shared namespace must be asked for explicitly.
func (e *ScopedExecutor) namespaceFor(ctx context.Context) (string, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return "", tenant.ErrMissingTenantContext
	}
	if scope.IsShared() {
		return e.sharedSchema, nil
	}
	return scope.Namespace, nil
}

func (e *ScopedExecutor) acquire(ctx context.Context) (pooledConn, error) {
	actx, cancel := context.WithTimeout(ctx, e.acquireTimeout)
	defer cancel()

	start := time.Now()
	conn, err := e.pool.Acquire(actx)
	metrics.PoolAcquireSeconds.Observe(time.Since(start).Seconds())
	if err == nil {
		return conn, nil
	}

	// The caller's own deadline or cancellation wins over pool exhaustion.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.PoolExhausted.Inc()
		e.logger.Warn("connection pool exhausted", zap.Duration("acquire_timeout", e.acquireTimeout))
		return nil, fmt.Errorf("%w: no connection within %s", tenant.ErrPoolExhausted, e.acquireTimeout)
	}
	return nil, wrapStore("acquire connection", "", err)
}

// release resets the connection to the shared namespace and returns it to the
// pool. A plain SET issued inside a committed transaction outlives it, so
// transactional calls are reset too. Connections whose state is unknown are
// destroyed instead.
func (e *ScopedExecutor) release(conn pooledConn, op string, discard bool) {
	// The request context may already be cancelled; the reset must still run.
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	if discard {
		metrics.ConnectionsDiscarded.WithLabelValues("bind_failed").Inc()
		conn.Destroy(ctx)
		return
	}

	sql, args, _ := namespaceBinding(e.sharedSchema, false)
	if _, err := conn.Exec(ctx, sql, args...); err != nil {
		metrics.ConnectionsDiscarded.WithLabelValues("reset_failed").Inc()
		e.logger.Warn("namespace reset failed, discarding connection", zap.String("op", op), zap.Error(err))
		conn.Destroy(ctx)
		return
	}
	conn.Release()
}
