package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"profile-registry/internal/domain"
	"profile-registry/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// collection describes how one sequence-keyed child table is written.
// Insert takes ($1 profile_id, $2 sequence, fields...); Update is keyed by
// (profile_id, sequence) in the same positions.
type collection[T any] struct {
	table  string
	insert string
	update string
	fields func(T) ([]any, error)
}

var experienceTable = collection[domain.Experience]{
	table: "profile_experiences",
	insert: `INSERT INTO profile_experiences
		(profile_id, sequence, title, organization, period_text, start_date, end_date, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	update: `UPDATE profile_experiences SET
		title = $3, organization = $4, period_text = $5, start_date = $6, end_date = $7, description = $8
		WHERE profile_id = $1 AND sequence = $2`,
	fields: func(e domain.Experience) ([]any, error) {
		return []any{e.Title, e.Organization, e.PeriodText, e.StartDate, e.EndDate, e.Description}, nil
	},
}

var certificateTable = collection[domain.Certificate]{
	table: "profile_certificates",
	insert: `INSERT INTO profile_certificates
		(profile_id, sequence, name, status, issued_on, expires_on, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`,
	update: `UPDATE profile_certificates SET
		name = $3, status = $4, issued_on = $5, expires_on = $6, document = $7::jsonb
		WHERE profile_id = $1 AND sequence = $2`,
	fields: func(c domain.Certificate) ([]any, error) {
		var doc *string
		if c.Document != nil {
			b, err := json.Marshal(c.Document)
			if err != nil {
				return nil, err
			}
			s := string(b)
			doc = &s
		}
		return []any{c.Name, string(c.Status), c.IssuedOn, c.ExpiresOn, doc}, nil
	},
}

var contactPersonTable = collection[domain.ContactPerson]{
	table: "profile_contact_persons",
	insert: `INSERT INTO profile_contact_persons
		(profile_id, sequence, name, position, email, phone, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	update: `UPDATE profile_contact_persons SET
		name = $3, position = $4, email = $5, phone = $6, is_primary = $7
		WHERE profile_id = $1 AND sequence = $2`,
	fields: func(c domain.ContactPerson) ([]any, error) {
		return []any{c.Name, c.Position, c.Email, c.Phone, c.IsPrimary}, nil
	},
}

var certificationTable = collection[domain.CertificationRequest]{
	table: "profile_certifications",
	insert: `INSERT INTO profile_certifications
		(profile_id, sequence, certification_type, level, audit_type, scope, desired_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	update: `UPDATE profile_certifications SET
		certification_type = $3, level = $4, audit_type = $5, scope = $6, desired_date = $7
		WHERE profile_id = $1 AND sequence = $2`,
	fields: func(c domain.CertificationRequest) ([]any, error) {
		return []any{c.CertificationType, c.Level, c.AuditType, c.Scope, c.DesiredDate}, nil
	},
}

// replaceChildren diffs every collection against the stored rows and sends
// the resulting statements as one batch inside tx. rows are already
// re-sequenced, so rows[i] has sequence i+1.
func replaceChildren(ctx context.Context, tx pgx.Tx, profileID string, isNew bool, c domain.Children) error {
	b := &pgx.Batch{}

	if err := queueCollection(ctx, tx, b, profileID, isNew, experienceTable, c.Experiences); err != nil {
		return err
	}
	if err := queueCollection(ctx, tx, b, profileID, isNew, certificateTable, c.Certificates); err != nil {
		return err
	}
	// clear the primary flag first so moving it between rows never trips the
	// partial unique index mid-batch
	if !isNew {
		b.Queue(`UPDATE profile_contact_persons SET is_primary = FALSE WHERE profile_id = $1 AND is_primary`, profileID)
	}
	if err := queueCollection(ctx, tx, b, profileID, isNew, contactPersonTable, c.ContactPersons); err != nil {
		return err
	}
	if err := queueCollection(ctx, tx, b, profileID, isNew, certificationTable, c.Certifications); err != nil {
		return err
	}
	if err := queueTags(ctx, tx, b, profileID, isNew, c.Tags); err != nil {
		return err
	}

	if b.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

func queueCollection[T any](ctx context.Context, tx pgx.Tx, b *pgx.Batch, profileID string, isNew bool, spec collection[T], rows []T) error {
	var existing []int
	if !isNew {
		var err error
		existing, err = storedSequences(ctx, tx, spec.table, profileID)
		if err != nil {
			return err
		}
	}

	plan := repository.PlanSequences(existing, len(rows))
	if len(plan.Delete) > 0 {
		b.Queue(fmt.Sprintf(`DELETE FROM %s WHERE profile_id = $1 AND sequence = ANY($2)`, spec.table),
			profileID, pq.Array(toInt64(plan.Delete)))
	}
	for _, seq := range plan.Update {
		args, err := rowArgs(spec, profileID, seq, rows[seq-1])
		if err != nil {
			return err
		}
		b.Queue(spec.update, args...)
	}
	for _, seq := range plan.Insert {
		args, err := rowArgs(spec, profileID, seq, rows[seq-1])
		if err != nil {
			return err
		}
		b.Queue(spec.insert, args...)
	}
	return nil
}

func rowArgs[T any](spec collection[T], profileID string, seq int, row T) ([]any, error) {
	fields, err := spec.fields(row)
	if err != nil {
		return nil, fmt.Errorf("%s row %d: %w", spec.table, seq, err)
	}
	return append([]any{profileID, seq}, fields...), nil
}

func storedSequences(ctx context.Context, tx pgx.Tx, table, profileID string) ([]int, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT sequence FROM %s WHERE profile_id = $1`, table), profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func queueTags(ctx context.Context, tx pgx.Tx, b *pgx.Batch, profileID string, isNew bool, tags []domain.ClassificationTag) error {
	var existing []repository.TagKey
	if !isNew {
		rows, err := tx.Query(ctx, `SELECT group_code, code_key FROM profile_tags WHERE profile_id = $1`, profileID)
		if err != nil {
			return err
		}
		existing, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.TagKey, error) {
			var k repository.TagKey
			err := row.Scan(&k.Group, &k.Key)
			return k, err
		})
		if err != nil {
			return err
		}
	}

	desired := make([]repository.TagKey, len(tags))
	byKey := make(map[repository.TagKey]domain.ClassificationTag, len(tags))
	for i, t := range tags {
		k := repository.TagKey{Group: t.Group, Key: t.Key}
		desired[i] = k
		byKey[k] = t
	}

	plan := repository.PlanTags(existing, desired)
	for _, k := range plan.Delete {
		b.Queue(`DELETE FROM profile_tags WHERE profile_id = $1 AND group_code = $2 AND code_key = $3`,
			profileID, k.Group, k.Key)
	}
	for _, k := range plan.Upsert {
		t := byKey[k]
		b.Queue(`
			INSERT INTO profile_tags (profile_id, group_code, code_key, label, sequence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (profile_id, group_code, code_key) DO UPDATE SET
				label = EXCLUDED.label,
				sequence = EXCLUDED.sequence`,
			profileID, t.Group, t.Key, t.Label, t.Sequence)
	}
	return nil
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func loadExperiences(ctx context.Context, db *pgxpool.Pool, profileID string) ([]domain.Experience, error) {
	rows, err := db.Query(ctx, `
		SELECT profile_id, sequence, title, organization, period_text, start_date, end_date, description
		FROM profile_experiences WHERE profile_id = $1 ORDER BY sequence`, profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Experience, error) {
		var e domain.Experience
		err := row.Scan(&e.ProfileID, &e.Sequence, &e.Title, &e.Organization, &e.PeriodText,
			&e.StartDate, &e.EndDate, &e.Description)
		return e, err
	})
}

func loadCertificates(ctx context.Context, db *pgxpool.Pool, profileID string) ([]domain.Certificate, error) {
	rows, err := db.Query(ctx, `
		SELECT profile_id, sequence, name, status, issued_on, expires_on, document
		FROM profile_certificates WHERE profile_id = $1 ORDER BY sequence`, profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Certificate, error) {
		var (
			c   domain.Certificate
			doc []byte
		)
		if err := row.Scan(&c.ProfileID, &c.Sequence, &c.Name, &c.Status, &c.IssuedOn, &c.ExpiresOn, &doc); err != nil {
			return c, err
		}
		if len(doc) > 0 {
			c.Document = &domain.FileRef{}
			if err := json.Unmarshal(doc, c.Document); err != nil {
				return c, fmt.Errorf("decode certificate document: %w", err)
			}
		}
		return c, nil
	})
}

func loadContactPersons(ctx context.Context, db *pgxpool.Pool, profileID string) ([]domain.ContactPerson, error) {
	rows, err := db.Query(ctx, `
		SELECT profile_id, sequence, name, position, email, phone, is_primary
		FROM profile_contact_persons WHERE profile_id = $1 ORDER BY sequence`, profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ContactPerson, error) {
		var c domain.ContactPerson
		err := row.Scan(&c.ProfileID, &c.Sequence, &c.Name, &c.Position, &c.Email, &c.Phone, &c.IsPrimary)
		return c, err
	})
}

func loadCertifications(ctx context.Context, db *pgxpool.Pool, profileID string) ([]domain.CertificationRequest, error) {
	rows, err := db.Query(ctx, `
		SELECT profile_id, sequence, certification_type, level, audit_type, scope, desired_date
		FROM profile_certifications WHERE profile_id = $1 ORDER BY sequence`, profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CertificationRequest, error) {
		var c domain.CertificationRequest
		err := row.Scan(&c.ProfileID, &c.Sequence, &c.CertificationType, &c.Level, &c.AuditType, &c.Scope, &c.DesiredDate)
		return c, err
	})
}

func loadTags(ctx context.Context, db *pgxpool.Pool, profileID string) ([]domain.ClassificationTag, error) {
	rows, err := db.Query(ctx, `
		SELECT profile_id, group_code, code_key, label, sequence
		FROM profile_tags WHERE profile_id = $1 ORDER BY group_code, sequence`, profileID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTag)
}

func scanTag(row pgx.CollectableRow) (domain.ClassificationTag, error) {
	var t domain.ClassificationTag
	err := row.Scan(&t.ProfileID, &t.Group, &t.Key, &t.Label, &t.Sequence)
	return t, err
}
