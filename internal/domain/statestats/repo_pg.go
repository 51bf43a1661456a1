package statestats

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidtrack/covid-server/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const statCols = `id, state, confirmed, recovered, active, deaths, managed_by_user_id, created_at, updated_at`

func scanStat(row pgx.Row) (*StateStat, error) {
	var s StateStat
	err := row.Scan(&s.ID, &s.State, &s.Confirmed, &s.Recovered, &s.Active, &s.Deaths,
		&s.ManagedByUserID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *StateStat) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO state_stats (id, state, confirmed, recovered, active, deaths, managed_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		s.ID, s.State, s.Confirmed, s.Recovered, s.Active, s.Deaths, s.ManagedByUserID).Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrManagerNotFound
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*StateStat, error) {
	return scanStat(r.conn(ctx).QueryRow(ctx, `SELECT `+statCols+` FROM state_stats WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *StateStat) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE state_stats
		SET state = $2, confirmed = $3, recovered = $4, active = $5, deaths = $6,
		    managed_by_user_id = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.State, s.Confirmed, s.Recovered, s.Active, s.Deaths, s.ManagedByUserID).Scan(&s.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsForeignKeyViolation(err):
		return ErrManagerNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM state_stats WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, state string, limit, offset int) ([]*StateStat, int, error) {
	where, args := "", []interface{}{}
	if state != "" {
		where = ` WHERE lower(state) = lower($1)`
		args = append(args, state)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM state_stats`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+statCols+` FROM state_stats`+where+
		` ORDER BY state, updated_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*StateStat
	for rows.Next() {
		s, err := scanStat(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
