package postgres

import (
	"context"
	"errors"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type classificationRepo struct {
	db *pgxpool.Pool
}

// NewClassificationRepository creates the code store backed by classification_codes.
func NewClassificationRepository(db *pgxpool.Pool) domain.ClassificationCodeStore {
	return &classificationRepo{db: db}
}

func (r *classificationRepo) ListGroups(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT group_code FROM classification_codes ORDER BY group_code`)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	groups, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return groups, database.ClassifyError(err)
}

func (r *classificationRepo) ListCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error) {
	rows, err := r.db.Query(ctx, `
		SELECT group_code, code_key, label, sort_order, active
		FROM classification_codes
		WHERE group_code = $1
		ORDER BY sort_order, code_key`, group)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	all, err := pgx.CollectRows(rows, scanCode)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	if len(all) == 0 {
		return nil, apperror.NotFound("Classification group not found")
	}

	active := make([]domain.ClassificationCode, 0, len(all))
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}

func (r *classificationRepo) GetCode(ctx context.Context, group, key string) (*domain.ClassificationCode, error) {
	rows, err := r.db.Query(ctx, `
		SELECT group_code, code_key, label, sort_order, active
		FROM classification_codes
		WHERE group_code = $1 AND code_key = $2`, group, key)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("Classification code not found")
		}
		return nil, database.ClassifyError(err)
	}
	return &c, nil
}

func scanCode(row pgx.CollectableRow) (domain.ClassificationCode, error) {
	var c domain.ClassificationCode
	err := row.Scan(&c.Group, &c.Key, &c.Label, &c.Sequence, &c.Active)
	return c, err
}
