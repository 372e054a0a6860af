// Package formdb writes compiled form HTML into the Zeev wfForm table on
// SQL Server.
package formdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"path"
	"strconv"
	"sync"

	_ "github.com/microsoft/go-mssqldb" // registers the sqlserver driver

	"github.com/leapstack-labs/zeev/internal/config"
)

// Column is a wfForm layout column.
type Column string

// Layout columns of wfForm.
const (
	ColumnLayout       Column = "DsLayout"
	ColumnHeader       Column = "DsLayoutHead"
	ColumnReportHeader Column = "DsLayoutHeadReport"
)

// ColumnForEntry returns the column a form entry is stored in: header.html
// and report.html are the form and report headers, anything else the layout.
func ColumnForEntry(entry string) Column {
	switch path.Base(entry) {
	case "header.html":
		return ColumnHeader
	case "report.html":
		return ColumnReportHeader
	default:
		return ColumnLayout
	}
}

func (c Column) valid() bool {
	switch c {
	case ColumnLayout, ColumnHeader, ColumnReportHeader:
		return true
	}
	return false
}

// ErrNoRowsUpdated is returned when no wfForm row has the given CodForm.
var ErrNoRowsUpdated = errors.New("no form updated")

// Client updates form layouts.
type Client struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an open database handle.
// If logger is nil, a discard logger is used.
func New(db *sql.DB, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{db: db, logger: logger}
}

// Open connects to SQL Server with the session connection settings.
func Open(ctx context.Context, cfg config.ConnectionConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("database server is not set: export %s", config.EnvDatabaseServer)
	}

	c := New(nil, logger)
	c.logger.Debug("connecting to sql server", slog.String("server", cfg.Server), slog.String("database", cfg.Database))

	db, err := sql.Open("sqlserver", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open sql server connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.Pool.Max)
	db.SetMaxIdleConns(cfg.Pool.Max)
	db.SetConnMaxIdleTime(cfg.Pool.IdleTimeout())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sql server: %w", err)
	}

	c.db = db
	return c, nil
}

// buildDSN constructs a sqlserver:// connection URL.
func buildDSN(cfg config.ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultConnectionPort
	}

	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	q.Set("encrypt", strconv.FormatBool(cfg.Options.Encrypt))
	q.Set("TrustServerCertificate", strconv.FormatBool(cfg.Options.TrustServerCertificate))

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(cfg.Server, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

// UpdateLayout stores html in column for the form with the given CodForm.
func (c *Client) UpdateLayout(ctx context.Context, column Column, codform int, html string) error {
	if !column.valid() {
		return fmt.Errorf("unknown wfForm column %q", column)
	}

	query := fmt.Sprintf("UPDATE wfForm SET %s = @p1 WHERE CodForm = @p2", column)
	res, err := c.db.ExecContext(ctx, query, html, codform)
	if err != nil {
		return fmt.Errorf("failed to update %s for codform %d: %w", column, codform, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: codform %d", ErrNoRowsUpdated, codform)
	}

	c.logger.Debug("updated form layout",
		slog.String("column", string(column)),
		slog.Int("codform", codform),
		slog.Int("bytes", len(html)))
	return nil
}

// Close closes the database handle.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Lazy opens the connection on first use and reuses it for the session.
// A failed connection attempt is retried on the next call.
type Lazy struct {
	cfg    config.ConnectionConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *Client
}

// NewLazy returns a Lazy client for cfg.
func NewLazy(cfg config.ConnectionConfig, logger *slog.Logger) *Lazy {
	return &Lazy{cfg: cfg, logger: logger}
}

// UpdateLayout connects if needed and updates the layout.
func (l *Lazy) UpdateLayout(ctx context.Context, column Column, codform int, html string) error {
	l.mu.Lock()
	if l.client == nil {
		client, err := Open(ctx, l.cfg, l.logger)
		if err != nil {
			l.mu.Unlock()
			return err
		}
		l.client = client
	}
	client := l.client
	l.mu.Unlock()

	return client.UpdateLayout(ctx, column, codform, html)
}

// Close closes the connection if it was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return nil
	}
	err := l.client.Close()
	l.client = nil
	return err
}
