package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver
	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/config"
	"github.com/dentaldesk/legacymigrate/pkg/logging"
)

// ReadOnly is the capability handle for the legacy source. It wraps the
// underlying connection and exposes query methods only; no Exec-shaped
// method exists on the type, so a write attempt is a compile error rather
// than a runtime check.
type ReadOnly struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the legacy SQL Server and verifies the session cannot
// write. A credential that holds INSERT permission on a writable database
// is a fatal configuration error, not something to warn about and continue.
func Open(ctx context.Context, cfg *config.LegacyConfig, logger *zap.Logger) (*ReadOnly, error) {
	connStr := buildConnectionString(cfg)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach legacy source %s: %s",
			logging.SanitizeConnectionString(connStr), logging.SanitizeError(err))
	}

	ro := &ReadOnly{db: db, logger: logger}

	if err := ro.verifyReadOnlySession(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to legacy source",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return ro, nil
}

// QueryContext runs a guarded read query. The statement must be a single
// SELECT (or WITH) and every bound string value is screened for injection
// patterns before the driver sees anything.
func (r *ReadOnly) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := GuardStatement(query); err != nil {
		r.logger.Error("Rejected legacy statement",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
		return nil, err
	}
	for i, arg := range args {
		if err := GuardValue(fmt.Sprintf("p%d", i+1), arg); err != nil {
			return nil, err
		}
	}
	return r.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a guarded single-row read query. Guard failures
// surface on the row's Scan, matching database/sql conventions.
func (r *ReadOnly) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if err := GuardStatement(query); err != nil {
		r.logger.Error("Rejected legacy statement",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
		// database/sql has no way to construct an errored Row; run a
		// statement guaranteed to return no rows instead of the original.
		return r.db.QueryRowContext(ctx, "SELECT 1 WHERE 1 = 0")
	}
	return r.db.QueryRowContext(ctx, query, args...)
}

// PingContext verifies connectivity.
func (r *ReadOnly) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the legacy connection.
func (r *ReadOnly) Close() error {
	return r.db.Close()
}

// verifyReadOnlySession proves the session cannot mutate the source.
// Acceptable states: the database itself is READ_ONLY, or the login lacks
// INSERT permission on it. Anything else aborts startup.
func (r *ReadOnly) verifyReadOnlySession(ctx context.Context) error {
	const probe = `SELECT
		CAST(DATABASEPROPERTYEX(DB_NAME(), 'Updateability') AS NVARCHAR(60)),
		ISNULL(HAS_PERMS_BY_NAME(DB_NAME(), 'DATABASE', 'INSERT'), 0)`

	var updateability string
	var hasInsert int
	if err := r.db.QueryRowContext(ctx, probe).Scan(&updateability, &hasInsert); err != nil {
		return fmt.Errorf("failed to probe legacy session permissions: %s", logging.SanitizeError(err))
	}

	if updateability == "READ_ONLY" {
		return nil
	}
	if hasInsert != 0 {
		return fmt.Errorf("legacy credential can write to %q: use a read-only login", updateability)
	}
	return nil
}

// buildConnectionString assembles a sqlserver:// DSN from config.
func buildConnectionString(cfg *config.LegacyConfig) string {
	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeoutSeconds > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeoutSeconds))
	}
	query.Add("app name", "legacymigrate")

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		query.Encode(),
	)
}
