package ingest

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ErrPageNotFound = errors.New("page not found")

// Page is the registry row of one ingested URL.
type Page struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	TextLength int       `json:"text_length"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repository interface {
	Upsert(ctx context.Context, url, status string) error
	UpdateStatus(ctx context.Context, p *Page) error
	Get(ctx context.Context, url string) (*Page, error)
	List(ctx context.Context) ([]Page, error)
	Delete(ctx context.Context, url string) (bool, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Upsert registers url with status, clearing any previous error.
func (r *PostgresRepo) Upsert(ctx context.Context, url, status string) error {
	query := `INSERT INTO pages (url, status) VALUES ($1, $2)
ON CONFLICT (url) DO UPDATE SET status = EXCLUDED.status, error = '', updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, url, status)
	return err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, p *Page) error {
	query := `UPDATE pages SET status = $2, title = $3, chunk_count = $4, text_length = $5, error = $6, updated_at = NOW() WHERE url = $1`
	res, err := r.db.ExecContext(ctx, query, p.URL, p.Status, p.Title, p.ChunkCount, p.TextLength, p.Error)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPageNotFound
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, url string) (*Page, error) {
	p := &Page{}
	query := `SELECT url, title, status, chunk_count, text_length, error, created_at, updated_at FROM pages WHERE url = $1`
	err := r.db.QueryRowContext(ctx, query, url).
		Scan(&p.URL, &p.Title, &p.Status, &p.ChunkCount, &p.TextLength, &p.Error, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Page, error) {
	query := `SELECT url, title, status, chunk_count, text_length, error, created_at, updated_at FROM pages ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.URL, &p.Title, &p.Status, &p.ChunkCount, &p.TextLength, &p.Error, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Delete removes the row for url and reports whether one existed.
func (r *PostgresRepo) Delete(ctx context.Context, url string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE url = $1`, url)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}
