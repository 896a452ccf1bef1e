package preference

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"consenthub/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, description, active, created_at, updated_at
    FROM preference_categories
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		return scanCategory(row)
	})
}

func (s *Store) GetCategory(ctx context.Context, id string) (Category, error) {
	c, err := scanCategory(s.DB.QueryRow(ctx, `
    SELECT id, name, description, active, created_at, updated_at
    FROM preference_categories
    WHERE id::text = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

func (s *Store) CreateCategory(ctx context.Context, c Category) (Category, error) {
	created, err := scanCategory(s.DB.QueryRow(ctx, `
    INSERT INTO preference_categories (name, description, active)
    VALUES ($1,$2,$3)
    RETURNING id, name, description, active, created_at, updated_at
  `, c.Name, c.Description, c.Active))
	return created, mapWriteErr(err)
}

func (s *Store) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	updated, err := scanCategory(s.DB.QueryRow(ctx, `
    UPDATE preference_categories
    SET name = $1, description = $2, active = $3, updated_at = now()
    WHERE id::text = $4
    RETURNING id, name, description, active, created_at, updated_at
  `, c.Name, c.Description, c.Active, c.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	return updated, mapWriteErr(err)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var items int
		if err := tx.QueryRow(ctx, "SELECT COUNT(1) FROM preference_items WHERE category_id::text = $1", id).Scan(&items); err != nil {
			return err
		}
		if items > 0 {
			return ErrCategoryInUse
		}
		tag, err := tx.Exec(ctx, "DELETE FROM preference_categories WHERE id::text = $1", id)
		if err != nil {
			return mapWriteErr(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

func (s *Store) ListItems(ctx context.Context, categoryID string) ([]Item, error) {
	query := `SELECT id, category_id, key, label, description, channel, default_value, created_at FROM preference_items`
	var args []any
	if categoryID != "" {
		query += " WHERE category_id::text = $1"
		args = append(args, categoryID)
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY key", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.CategoryID, &it.Key, &it.Label, &it.Description, &it.Channel, &it.DefaultValue, &it.CreatedAt)
		return it, err
	})
}

func (s *Store) CreateItem(ctx context.Context, it Item) (Item, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO preference_items (category_id, key, label, description, channel, default_value)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at
  `, it.CategoryID, it.Key, it.Label, it.Description, it.Channel, it.DefaultValue).Scan(&it.ID, &it.CreatedAt)
	return it, mapWriteErr(err)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM preference_items WHERE id::text = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *Store) UserValues(ctx context.Context, userID string) (map[string]StoredValue, error) {
	rows, err := s.DB.Query(ctx, "SELECT item_id::text, value, updated_at FROM user_preferences WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]StoredValue{}
	for rows.Next() {
		var itemID string
		var v StoredValue
		if err := rows.Scan(&itemID, &v.Value, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out[itemID] = v
	}
	return out, rows.Err()
}

func (s *Store) SetUserValues(ctx context.Context, userID string, values map[string]bool, at time.Time) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		for itemID, value := range values {
			if _, err := tx.Exec(ctx, `
        INSERT INTO user_preferences (user_id, item_id, value, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, item_id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
      `, userID, itemID, value, at); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrCategoryInUse
		}
	}
	return err
}
