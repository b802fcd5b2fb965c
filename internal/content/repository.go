package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]News, error) {
	items := make([]News, 0)
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, title, body, category, published_at, created_at, updated_at
		FROM news
		ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}

	return items, nil
}

func (r *Repository) Get(ctx context.Context, id string) (News, error) {
	var item News
	err := r.db.GetContext(ctx, &item, `
		SELECT id, title, body, category, published_at, created_at, updated_at
		FROM news
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return News{}, err
		}
		return News{}, fmt.Errorf("query news by id: %w", err)
	}

	return item, nil
}

func (r *Repository) Create(ctx context.Context, input NewsInput) (News, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return News{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	item := News{
		ID:          id.String(),
		Title:       input.Title,
		Body:        input.Body,
		Category:    input.Category,
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO news (id, title, body, category, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Title, item.Body, item.Category, item.PublishedAt, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return News{}, fmt.Errorf("insert news: %w", err)
	}

	return item, nil
}

func (r *Repository) Update(ctx context.Context, id string, input NewsInput) (News, error) {
	var item News
	now := time.Now().UTC()

	err := r.db.QueryRowxContext(ctx, `
		UPDATE news
		SET title = $2, body = $3, category = $4, updated_at = $5
		WHERE id = $1
		RETURNING id, title, body, category, published_at, created_at, updated_at
	`, id, input.Title, input.Body, input.Category, now).StructScan(&item)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return News{}, err
		}
		return News{}, fmt.Errorf("update news: %w", err)
	}

	return item, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
