package feedback

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Columns names the core columns of the feedback table.
type Columns struct {
	ID        string
	Project   string
	Text      string
	CreatedAt string
}

// DefaultColumns matches the hosted feedback table.
func DefaultColumns() Columns {
	return Columns{
		ID:        "id",
		Project:   "startup_name",
		Text:      "feedback",
		CreatedAt: "created_at",
	}
}

// PostgresConfig configures a PostgresSource.
type PostgresConfig struct {
	URL   string
	Table string // may be schema-qualified (default: feedback)
	// Columns defaults to DefaultColumns.
	Columns  Columns
	MaxConns int32
}

// PostgresSource reads feedback from a Postgres table.
type PostgresSource struct {
	pool    *pgxpool.Pool
	table   string
	columns Columns
}

// NewPostgresSource connects to cfg.URL and verifies the connection.
func NewPostgresSource(ctx context.Context, cfg PostgresConfig) (*PostgresSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("feedback database URL is required")
	}
	if cfg.Table == "" {
		cfg.Table = "feedback"
	}
	if cfg.Columns == (Columns{}) {
		cfg.Columns = DefaultColumns()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{
		pool:    pool,
		table:   quoteTable(cfg.Table),
		columns: cfg.Columns,
	}, nil
}

// Close releases the connection pool.
func (p *PostgresSource) Close() {
	p.pool.Close()
}

// Projects implements Source.
func (p *PostgresSource) Projects(ctx context.Context) ([]string, error) {
	project := pgx.Identifier{p.columns.Project}.Sanitize()
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s`,
		project, p.table, project, project)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	return projects, nil
}

// ListByProject implements Source. Rows are read with SELECT * so new
// columns land in Item.Extra.
func (p *PostgresSource) ListByProject(ctx context.Context, project string) ([]Item, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1 ORDER BY %s DESC`,
		p.table,
		pgx.Identifier{p.columns.Project}.Sanitize(),
		pgx.Identifier{p.columns.CreatedAt}.Sanitize())

	rows, err := p.pool.Query(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback rows: %w", err)
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, itemFromRow(rec, p.columns))
	}
	return items, nil
}

// quoteTable sanitizes a possibly schema-qualified table name.
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// itemFromRow maps a row to an Item, moving unknown columns to Extra.
func itemFromRow(row map[string]any, cols Columns) Item {
	var it Item
	for k, v := range row {
		switch k {
		case cols.ID:
			it.ID = stringValue(v)
		case cols.Project:
			it.Project = stringValue(v)
		case cols.Text:
			it.Text = stringValue(v)
		case cols.CreatedAt:
			if t, ok := v.(time.Time); ok {
				it.CreatedAt = t.UTC()
			} else if s := stringValue(v); s != "" {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					it.CreatedAt = t.UTC()
				}
			}
		default:
			if it.Extra == nil {
				it.Extra = make(map[string]any)
			}
			it.Extra[k] = v
		}
	}
	return it
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
