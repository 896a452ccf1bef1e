package party

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"consenthub/internal/platform/querier"
)

type StoreAPI interface {
	GetRecord(ctx context.Context, id string) (Record, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) GetRecord(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.name, u.phone, r.name, u.status, u.created_at
    FROM users u
    JOIN roles r ON r.id = u.role_id
    WHERE u.id::text = $1
  `, id).Scan(&rec.ID, &rec.Email, &rec.Name, &rec.Phone, &rec.RoleName, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrPartyNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rows, err := s.DB.Query(ctx, "SELECT minor_dependents FROM guardians WHERE user_id::text = $1", id)
	if err != nil {
		return Record{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return Record{}, err
		}
		var minors []Minor
		if err := json.Unmarshal(raw, &minors); err != nil {
			return Record{}, err
		}
		rec.Minors = append(rec.Minors, minors...)
	}
	return rec, rows.Err()
}
