package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/internal/repository"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const profileColumns = `
	id, owner_id, variant, display_name, contact_email, contact_phone, bio,
	location_code, attachments,
	years_of_experience, hourly_rate_min, hourly_rate_max, hourly_rate_currency, hourly_rate_text,
	business_registration_number, representative_name, founded_on, employee_count,
	state, version, rating, review_count, reviewed_by, review_note,
	submitted_at, reviewed_at, approved_at, rejected_at,
	created_at, updated_at, deleted_at`

func init() {
	database.ConstraintMessages[repository.ConstraintOwnerVariant] = "a profile of this variant already exists for the owner"
	database.ConstraintMessages[repository.ConstraintBusinessRegNo] = "business registration number is already registered"
	database.ConstraintMessages[repository.ConstraintPrimaryContact] = "only one contact person may be primary"
	database.ConstraintMessages[repository.ConstraintTagUnique] = "classification is listed more than once"
}

type profileRepo struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates the aggregate repository. Every write runs in
// one transaction spanning the envelope and all child collections.
func NewProfileRepository(db *pgxpool.Pool) domain.AggregateRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) UpsertAggregate(ctx context.Context, ownerID string, variant domain.Variant, envelope domain.Profile, children domain.Children) (string, error) {
	env, err := repository.PrepareEnvelope(variant, envelope)
	if err != nil {
		return "", err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", database.ClassifyError(err)
	}
	defer tx.Rollback(ctx)

	stored, err := scanProfile(tx.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE owner_id = $1 AND variant = $2 AND deleted_at IS NULL
		 FOR UPDATE`, ownerID, variant))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", database.ClassifyError(err)
	}

	id, parentID := uuid.NewString(), ""
	if stored != nil {
		if err := repository.CheckWritable(stored, env.Version); err != nil {
			return "", err
		}
		id, parentID = stored.ID, stored.ID
	}
	if env.ID != "" && env.ID != id {
		return "", apperror.Validation("envelope.id", "envelope id does not match the owner's profile")
	}

	kids, err := repository.PrepareChildren(parentID, variant, children)
	if err != nil {
		return "", err
	}
	kids = repository.WithParent(kids, id)

	p := repository.MergeEnvelope(stored, env, ownerID, id)
	now := time.Now().UTC()
	p.UpdatedAt = now
	if stored == nil {
		p.CreatedAt = now
		err = insertProfile(ctx, tx, &p)
	} else {
		err = updateProfile(ctx, tx, &p)
	}
	if err != nil {
		return "", database.ClassifyError(err)
	}

	if err := replaceChildren(ctx, tx, id, stored == nil, kids); err != nil {
		return "", database.ClassifyError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", database.ClassifyError(err)
	}
	return id, nil
}

func (r *profileRepo) LoadAggregate(ctx context.Context, profileID string, opts domain.LoadOptions) (*domain.Aggregate, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return nil, apperror.NotFound("Profile not found")
	}

	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE id = $1 AND ($2 OR deleted_at IS NULL)`, profileID, opts.IncludeDeleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("Profile not found")
		}
		return nil, database.ClassifyError(err)
	}

	agg := &domain.Aggregate{Profile: *p}
	c := &agg.Children

	// each loader takes its own pool connection
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { c.Experiences, err = loadExperiences(gctx, r.db, profileID); return })
	g.Go(func() (err error) { c.Certificates, err = loadCertificates(gctx, r.db, profileID); return })
	g.Go(func() (err error) { c.ContactPersons, err = loadContactPersons(gctx, r.db, profileID); return })
	g.Go(func() (err error) { c.Certifications, err = loadCertifications(gctx, r.db, profileID); return })
	g.Go(func() (err error) { c.Tags, err = loadTags(gctx, r.db, profileID); return })
	if err := g.Wait(); err != nil {
		return nil, database.ClassifyError(err)
	}
	return agg, nil
}

func (r *profileRepo) FindByOwner(ctx context.Context, ownerID string, variant domain.Variant) (*domain.Aggregate, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM profiles WHERE owner_id = $1 AND variant = $2 AND deleted_at IS NULL`,
		ownerID, variant).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("Profile not found")
		}
		return nil, database.ClassifyError(err)
	}
	return r.LoadAggregate(ctx, id, domain.LoadOptions{})
}

func (r *profileRepo) UpdateState(ctx context.Context, change domain.StateChange) error {
	if _, err := uuid.Parse(change.ProfileID); err != nil {
		return apperror.NotFound("Profile not found")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return database.ClassifyError(err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProfile(tx.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		change.ProfileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("Profile not found")
		}
		return database.ClassifyError(err)
	}

	if err := repository.ApplyStateChange(p, change); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE profiles SET
			state = $2, version = $3, updated_at = $4,
			submitted_at = $5, reviewed_at = $6, approved_at = $7, rejected_at = $8,
			reviewed_by = $9, review_note = $10
		WHERE id = $1`,
		p.ID, p.State, p.Version, p.UpdatedAt,
		p.SubmittedAt, p.ReviewedAt, p.ApprovedAt, p.RejectedAt,
		p.ReviewedBy, p.ReviewNote,
	)
	if err != nil {
		return database.ClassifyError(err)
	}
	return database.ClassifyError(tx.Commit(ctx))
}

func (r *profileRepo) UpdateRating(ctx context.Context, profileID string, rating *float64, reviewCount int) error {
	return r.execLive(ctx, profileID,
		`UPDATE profiles SET rating = $2, review_count = $3 WHERE id = $1 AND deleted_at IS NULL`,
		rating, reviewCount)
}

func (r *profileRepo) SoftDelete(ctx context.Context, profileID string, at time.Time) error {
	return r.execLive(ctx, profileID,
		`UPDATE profiles SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		at)
}

// execLive runs a single-row update against a non-deleted profile.
func (r *profileRepo) execLive(ctx context.Context, profileID, query string, args ...any) error {
	if _, err := uuid.Parse(profileID); err != nil {
		return apperror.NotFound("Profile not found")
	}
	tag, err := r.db.Exec(ctx, query, append([]any{profileID}, args...)...)
	if err != nil {
		return database.ClassifyError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("Profile not found")
	}
	return nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		p           domain.Profile
		attachments []byte
		years       *int
		rateMin     *int64
		rateMax     *int64
		currency    string
		rateText    *string
		brn         string
		rep         string
		foundedOn   *time.Time
		employees   *int
	)
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Variant, &p.DisplayName, &p.ContactEmail, &p.ContactPhone, &p.Bio,
		&p.LocationCode, &attachments,
		&years, &rateMin, &rateMax, &currency, &rateText,
		&brn, &rep, &foundedOn, &employees,
		&p.State, &p.Version, &p.Rating, &p.ReviewCount, &p.ReviewedBy, &p.ReviewNote,
		&p.SubmittedAt, &p.ReviewedAt, &p.ApprovedAt, &p.RejectedAt,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Attachments = []domain.FileRef{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &p.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}

	switch p.Variant {
	case domain.VariantPersonal:
		p.Personal = &domain.PersonalDetails{
			YearsOfExperience: years,
			HourlyRate:        domain.HourlyRate{Min: rateMin, Max: rateMax, Currency: currency, Text: rateText},
		}
	case domain.VariantCompany:
		p.Company = &domain.CompanyDetails{
			BusinessRegistrationNumber: brn,
			RepresentativeName:         rep,
			FoundedOn:                  foundedOn,
			EmployeeCount:              employees,
		}
	}
	return &p, nil
}

// envelopeArgs flattens the variant columns. Columns of the other variant
// are written as their zero values.
func envelopeArgs(p *domain.Profile) ([]any, error) {
	attachments, err := json.Marshal(p.Attachments)
	if err != nil {
		return nil, err
	}

	var (
		years            *int
		rateMin, rateMax *int64
		currency         string
		rateText         *string
		brn, rep         string
		foundedOn        *time.Time
		employees        *int
	)
	if d := p.Personal; d != nil {
		years = d.YearsOfExperience
		rateMin, rateMax = d.HourlyRate.Min, d.HourlyRate.Max
		currency, rateText = d.HourlyRate.Currency, d.HourlyRate.Text
	}
	if d := p.Company; d != nil {
		brn, rep = d.BusinessRegistrationNumber, d.RepresentativeName
		foundedOn, employees = d.FoundedOn, d.EmployeeCount
	}

	return []any{
		p.ID, p.OwnerID, p.Variant, p.DisplayName, p.ContactEmail, p.ContactPhone, p.Bio,
		p.LocationCode, string(attachments),
		years, rateMin, rateMax, currency, rateText,
		brn, rep, foundedOn, employees,
		p.Version, p.UpdatedAt,
	}, nil
}

func insertProfile(ctx context.Context, tx pgx.Tx, p *domain.Profile) error {
	args, err := envelopeArgs(p)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (
			id, owner_id, variant, display_name, contact_email, contact_phone, bio,
			location_code, attachments,
			years_of_experience, hourly_rate_min, hourly_rate_max, hourly_rate_currency, hourly_rate_text,
			business_registration_number, representative_name, founded_on, employee_count,
			version, updated_at, state, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)`,
		append(args, p.State, p.CreatedAt)...,
	)
	return err
}

func updateProfile(ctx context.Context, tx pgx.Tx, p *domain.Profile) error {
	args, err := envelopeArgs(p)
	if err != nil {
		return err
	}
	// owner_id and variant ($2, $3) identify the row and never change
	_, err = tx.Exec(ctx, `
		UPDATE profiles SET
			display_name = $4, contact_email = $5, contact_phone = $6, bio = $7,
			location_code = $8, attachments = $9::jsonb,
			years_of_experience = $10, hourly_rate_min = $11, hourly_rate_max = $12,
			hourly_rate_currency = $13, hourly_rate_text = $14,
			business_registration_number = $15, representative_name = $16,
			founded_on = $17, employee_count = $18,
			version = $19, updated_at = $20
		WHERE id = $1 AND owner_id = $2 AND variant = $3`,
		args...,
	)
	return err
}
