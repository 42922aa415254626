package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/duplicates"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
)

const (
	tableRecords = "verification_records"
	tableReviews = "review_decisions"
)

var recordColumns = []string{
	"id", "org_id", "submitter_id", "event_id", "exact_hash", "perceptual_hashes",
	"identifier_norm", "manipulation", "extracted", "matches", "risk", "risk_score",
	"decision", "status", "version", "created_at", "updated_at",
}

var reviewColumns = []string{
	"reviewer_id", "outcome", "notes", "from_status", "to_status", "version", "decided_at",
}

type RecordRepository interface {
	// Create writes the record and any review decisions it carries in one transaction.
	Create(ctx context.Context, rec *entity.VerificationRecord) error
	// GetByID returns the record with its review trail, or common.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.VerificationRecord, error)
	// ScanCorpus lists the duplicate-detection projection of an organization's records.
	ScanCorpus(ctx context.Context, orgID string) ([]entity.CorpusEntry, error)
	// ListRecords returns an organization's records by creation time, without review trails.
	ListRecords(ctx context.Context, orgID string, from, to *time.Time) ([]*entity.VerificationRecord, error)
	// ApplyReview moves the record from expectedVersion to d.Version and appends d,
	// failing with common.ErrStaleVersion when the stored version differs.
	ApplyReview(ctx context.Context, id uuid.UUID, expectedVersion int, d entity.ReviewDecision) error
	// ListOrgs returns every organization with at least one record.
	ListOrgs(ctx context.Context) ([]string, error)
}

type recordRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewRecordRepository(store *Store, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepository{store: store, logger: logger}
}

func (r *recordRepository) Create(ctx context.Context, rec *entity.VerificationRecord) error {
	values, err := r.recordValues(rec)
	if err != nil {
		return common.Persistence("encode record", err)
	}
	insert, args := r.store.builder().Insert(tableRecords).Columns(recordColumns...).Values(values...).Query()

	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return common.Persistence("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		r.logger.Error("repository.record.create_failed", "record_id", rec.ID, "error", err)
		return common.Persistence("insert record", err)
	}
	for _, d := range rec.Reviews {
		if err := r.insertReview(ctx, tx, rec.ID, d); err != nil {
			return common.Persistence("insert review decision", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return common.Persistence("commit record", err)
	}
	r.logger.Debug("repository.record.created", "record_id", rec.ID, "org_id", rec.OrgID, "status", rec.Status)
	return nil
}

func (r *recordRepository) recordValues(rec *entity.VerificationRecord) ([]any, error) {
	phashes, err := jsonArg(rec.Digest.PerceptualHashes)
	if err != nil {
		return nil, err
	}
	manipulation, err := jsonArg(rec.Manipulation)
	if err != nil {
		return nil, err
	}
	extracted, err := jsonArg(rec.Extracted)
	if err != nil {
		return nil, err
	}
	matches := rec.Matches
	if matches == nil {
		matches = []entity.DuplicateMatch{}
	}
	matchesArg, err := jsonArg(matches)
	if err != nil {
		return nil, err
	}
	risk, err := jsonArg(rec.Risk)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.ID.String(), rec.OrgID, rec.SubmitterID, rec.EventID, rec.Digest.ExactHex(), phashes,
		duplicates.NormalizeIdentifier(rec.Extracted.Identifier()), manipulation, extracted, matchesArg, risk, rec.Risk.Score,
		string(rec.Risk.Decision), string(rec.Status), rec.Version, r.store.timeArg(rec.CreatedAt), r.store.timeArg(rec.UpdatedAt),
	}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *recordRepository) insertReview(ctx context.Context, q queryer, recordID uuid.UUID, d entity.ReviewDecision) error {
	insert, args := r.store.builder().Insert(tableReviews).
		Columns(append([]string{"record_id"}, reviewColumns...)...).
		Values(recordID.String(), d.ReviewerID, string(d.Outcome), d.Notes, string(d.FromStatus),
			string(d.ToStatus), d.Version, r.store.timeArg(d.DecidedAt)).
		Query()
	_, err := q.ExecContext(ctx, insert, args...)
	return err
}

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.VerificationRecord, error) {
	b := r.store.builder()
	query, args := b.Select(recordColumns...).From(b.Table(tableRecords)).Where(entsql.EQ("id", id.String())).Query()

	rec, err := scanRecord(r.store.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "record "+id.String(), common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("repository.record.get_failed", "record_id", id, "error", err)
		return nil, common.Persistence("get record", err)
	}

	rec.Reviews, err = r.listReviews(ctx, r.store.DB(), id)
	if err != nil {
		return nil, common.Persistence("list review decisions", err)
	}
	return rec, nil
}

func (r *recordRepository) listReviews(ctx context.Context, q queryer, id uuid.UUID) ([]entity.ReviewDecision, error) {
	b := r.store.builder()
	query, args := b.Select(reviewColumns...).From(b.Table(tableReviews)).
		Where(entsql.EQ("record_id", id.String())).OrderBy("version").Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]entity.ReviewDecision, 0)
	for rows.Next() {
		var (
			d                     entity.ReviewDecision
			outcome, fromSt, toSt string
			decidedAt             dbTime
		)
		if err := rows.Scan(&d.ReviewerID, &outcome, &d.Notes, &fromSt, &toSt, &d.Version, &decidedAt); err != nil {
			return nil, err
		}
		d.Outcome = constants.ReviewOutcome(outcome)
		d.FromStatus = constants.RecordStatus(fromSt)
		d.ToStatus = constants.RecordStatus(toSt)
		d.DecidedAt = decidedAt.Time
		reviews = append(reviews, d)
	}
	return reviews, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*entity.VerificationRecord, error) {
	var (
		rec                     entity.VerificationRecord
		id, exactHex, identNorm string
		decision, status        string
		riskScore               int
		createdAt, updatedAt    dbTime
	)
	err := row.Scan(
		&id, &rec.OrgID, &rec.SubmitterID, &rec.EventID, &exactHex,
		jsonColumn{&rec.Digest.PerceptualHashes}, &identNorm,
		jsonColumn{&rec.Manipulation}, jsonColumn{&rec.Extracted}, jsonColumn{&rec.Matches}, jsonColumn{&rec.Risk},
		&riskScore, &decision, &status, &rec.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	if rec.Digest.ExactHash, err = hex.DecodeString(exactHex); err != nil {
		return nil, fmt.Errorf("decode exact hash: %w", err)
	}
	rec.Status = constants.RecordStatus(status)
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	if rec.Matches == nil {
		rec.Matches = []entity.DuplicateMatch{}
	}
	return &rec, nil
}

func (r *recordRepository) ScanCorpus(ctx context.Context, orgID string) ([]entity.CorpusEntry, error) {
	b := r.store.builder()
	query, args := b.Select("id", "exact_hash", "perceptual_hashes", "identifier_norm").
		From(b.Table(tableRecords)).Where(entsql.EQ("org_id", orgID)).Query()

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.corpus.scan_failed", "org_id", orgID, "error", err)
		return nil, err
	}
	defer rows.Close()

	corpus := make([]entity.CorpusEntry, 0)
	for rows.Next() {
		var (
			e            entity.CorpusEntry
			id, exactHex string
		)
		if err := rows.Scan(&id, &exactHex, jsonColumn{&e.PerceptualHashes}, &e.IdentifierNormalized); err != nil {
			return nil, err
		}
		if e.RecordID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse record id: %w", err)
		}
		if e.ExactHash, err = hex.DecodeString(exactHex); err != nil {
			return nil, fmt.Errorf("decode exact hash: %w", err)
		}
		corpus = append(corpus, e)
	}
	return corpus, rows.Err()
}

func (r *recordRepository) ListRecords(ctx context.Context, orgID string, from, to *time.Time) ([]*entity.VerificationRecord, error) {
	preds := []*entsql.Predicate{entsql.EQ("org_id", orgID)}
	if from != nil {
		preds = append(preds, entsql.GTE("created_at", r.store.timeArg(*from)))
	}
	if to != nil {
		preds = append(preds, entsql.LT("created_at", r.store.timeArg(*to)))
	}
	b := r.store.builder()
	query, args := b.Select(recordColumns...).From(b.Table(tableRecords)).
		Where(entsql.And(preds...)).OrderBy("created_at", "id").Query()

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.record.list_failed", "org_id", orgID, "error", err)
		return nil, common.Persistence("list records", err)
	}
	defer rows.Close()

	out := make([]*entity.VerificationRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, common.Persistence("scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Persistence("list records", err)
	}
	return out, nil
}

func (r *recordRepository) ApplyReview(ctx context.Context, id uuid.UUID, expectedVersion int, d entity.ReviewDecision) error {
	if d.Version != expectedVersion+1 {
		return common.InvalidArgumentErrorf("review version %d does not follow %d", d.Version, expectedVersion)
	}

	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return common.Persistence("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	b := r.store.builder()
	update, args := b.Update(tableRecords).
		Set("status", string(d.ToStatus)).
		Set("version", d.Version).
		Set("updated_at", r.store.timeArg(d.DecidedAt)).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.EQ("version", expectedVersion))).
		Query()
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return common.Persistence("update record status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Persistence("update record status", err)
	}
	if n == 0 {
		query, qargs := b.Select("version").From(b.Table(tableRecords)).Where(entsql.EQ("id", id.String())).Query()
		var actual int
		switch err := tx.QueryRowContext(ctx, query, qargs...).Scan(&actual); {
		case errors.Is(err, sql.ErrNoRows):
			return common.NewAppError(common.CodeNotFound, "record "+id.String(), common.ErrNotFound)
		case err != nil:
			return common.Persistence("read record version", err)
		default:
			r.logger.Warn("repository.review.stale", "record_id", id, "expected", expectedVersion, "actual", actual)
			return common.StaleVersion(id.String(), expectedVersion, actual)
		}
	}

	if err := r.insertReview(ctx, tx, id, d); err != nil {
		return common.Persistence("insert review decision", err)
	}
	if err := tx.Commit(); err != nil {
		return common.Persistence("commit review", err)
	}
	r.logger.Info("repository.review.applied", "record_id", id, "status", d.ToStatus, "version", d.Version)
	return nil
}

func (r *recordRepository) ListOrgs(ctx context.Context) ([]string, error) {
	b := r.store.builder()
	query, args := b.Select("org_id").Distinct().From(b.Table(tableRecords)).OrderBy("org_id").Query()
	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.Persistence("list orgs", err)
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, common.Persistence("scan org", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}
