package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrAliasTaken = errors.New("alias already exists")
	ErrURLTaken   = errors.New("original url already exists")
)

// queryTimeout bounds every statement so a frozen database fails the request
// instead of pinning a worker.
const queryTimeout = 3 * time.Second

type URLRecord struct {
	Alias       string
	OriginalURL string
	CreatedAt   time.Time
}

type PostgresRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Println("PostgreSQL repository initialized successfully")

	return &PostgresRepository{pool: pool,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver,
	)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Println("Migrations applied successfully")
	return nil
}

// SaveURL inserts a new record. A unique violation is classified by
// constraint so the caller can tell an alias collision (regenerate and retry)
// from a concurrent insert of the same URL (return the winner's alias).
func (p *PostgresRepository) SaveURL(ctx context.Context, alias, originalURL string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Insert("urls").
		Columns("alias", "original_url").
		Values(alias, originalURL).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = p.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case "urls_pkey":
				return ErrAliasTaken
			case "urls_original_url_key":
				return ErrURLTaken
			}
		}
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

func (p *PostgresRepository) GetOriginalURL(ctx context.Context, alias string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Select("original_url").
		From("urls").
		Where(squirrel.Eq{"alias": alias}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var originalURL string
	err = p.pool.QueryRow(ctx, query, args...).Scan(&originalURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query row: %w", err)
	}

	return originalURL, nil
}

func (p *PostgresRepository) GetAliasByURL(ctx context.Context, originalURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Select("alias").
		From("urls").
		Where(squirrel.Eq{"original_url": originalURL}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var alias string
	err = p.pool.QueryRow(ctx, query, args...).Scan(&alias)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query row: %w", err)
	}

	return alias, nil
}

func (p *PostgresRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	_, err := p.GetOriginalURL(ctx, alias)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordClick upserts the daily click row in one statement. Two clicks for
// the same alias landing in the same instant both count; there is no
// read-modify-write window to lose.
func (p *PostgresRepository) RecordClick(ctx context.Context, alias string, day time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Insert("daily_clicks").
		Columns("alias", "click_date", "click_count").
		Values(alias, day.Format("2006-01-02"), 1).
		Suffix("ON CONFLICT (alias, click_date) DO UPDATE SET click_count = daily_clicks.click_count + 1").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

func (p *PostgresRepository) DailyClicks(ctx context.Context, alias string, from, to time.Time) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Select("click_date", "click_count").
		From("daily_clicks").
		Where(squirrel.Eq{"alias": alias}).
		Where(squirrel.GtOrEq{"click_date": from.Format("2006-01-02")}).
		Where(squirrel.LtOrEq{"click_date": to.Format("2006-01-02")}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily clicks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			day   time.Time
			count int64
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[day.Format("2006-01-02")] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

func (p *PostgresRepository) TotalClicks(ctx context.Context, alias string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Select("COALESCE(SUM(click_count), 0)").
		From("daily_clicks").
		Where(squirrel.Eq{"alias": alias}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("query row: %w", err)
	}

	return total, nil
}

func (p *PostgresRepository) ListURLs(ctx context.Context) ([]URLRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := p.sb.
		Select("alias", "original_url", "created_at").
		From("urls").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	var records []URLRecord
	for rows.Next() {
		var rec URLRecord
		if err := rows.Scan(&rec.Alias, &rec.OriginalURL, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}
