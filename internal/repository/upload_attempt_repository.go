package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// UploadAttemptFilter narrows ledger listings.
type UploadAttemptFilter struct {
	ConversationID *string
	SubjectID      *string
	Outcomes       []domain.UploadOutcome
	CreatedFrom    *time.Time
	Limit          int
	Offset         int
}

// UploadAttemptRepository persists the upload ledger.
type UploadAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.UploadAttempt) error
	Complete(ctx context.Context, conversationID string, uploadSeq int, status domain.SubmissionStatus, outcome domain.UploadOutcome, detail string) error
	ListWithFilter(ctx context.Context, filter UploadAttemptFilter) ([]domain.UploadAttempt, error)
}

type uploadAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewUploadAttemptRepository instantiates repository.
func NewUploadAttemptRepository(pool *pgxpool.Pool) UploadAttemptRepository {
	return &uploadAttemptRepository{pool: pool}
}

func (r *uploadAttemptRepository) Create(ctx context.Context, attempt *domain.UploadAttempt) error {
	if attempt.Outcome == "" {
		attempt.Outcome = domain.UploadOutcomePending
	}
	const query = `
        INSERT INTO upload_attempts (conversation_id, subject_id, upload_seq, submission_id, doc_type_id,
                                     file_name, overlapping, direct, status, outcome, detail)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (conversation_id, upload_seq) DO NOTHING
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		attempt.ConversationID,
		attempt.SubjectID,
		attempt.UploadSeq,
		attempt.SubmissionID,
		attempt.DocTypeID,
		attempt.FileName,
		attempt.Overlapping,
		attempt.Direct,
		attempt.Status,
		attempt.Outcome,
		attempt.Detail,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err == pgx.ErrNoRows {
		// duplicate delivery of the same event
		return nil
	}
	return err
}

func (r *uploadAttemptRepository) Complete(ctx context.Context, conversationID string, uploadSeq int, status domain.SubmissionStatus, outcome domain.UploadOutcome, detail string) error {
	const query = `
        UPDATE upload_attempts
        SET status=$3, outcome=$4, detail=$5, completed_at=now()
        WHERE conversation_id=$1 AND upload_seq=$2`
	cmd, err := r.pool.Exec(ctx, query, conversationID, uploadSeq, status, outcome, detail)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *uploadAttemptRepository) ListWithFilter(ctx context.Context, filter UploadAttemptFilter) ([]domain.UploadAttempt, error) {
	query, args := buildUploadAttemptQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UploadAttempt
	for rows.Next() {
		var a domain.UploadAttempt
		if err := rows.Scan(
			&a.ID,
			&a.ConversationID,
			&a.SubjectID,
			&a.UploadSeq,
			&a.SubmissionID,
			&a.DocTypeID,
			&a.FileName,
			&a.Overlapping,
			&a.Direct,
			&a.Status,
			&a.Outcome,
			&a.Detail,
			&a.CreatedAt,
			&a.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func buildUploadAttemptQuery(filter UploadAttemptFilter) (string, []any) {
	base := `SELECT id, conversation_id, subject_id, upload_seq, submission_id, doc_type_id, file_name,
                    overlapping, direct, status, outcome, detail, created_at, completed_at
             FROM upload_attempts`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ConversationID != nil {
		args = append(args, *filter.ConversationID)
		clauses = append(clauses, fmt.Sprintf("conversation_id=$%d", len(args)))
	}
	if filter.SubjectID != nil {
		args = append(args, *filter.SubjectID)
		clauses = append(clauses, fmt.Sprintf("subject_id=$%d", len(args)))
	}
	if len(filter.Outcomes) > 0 {
		placeholders := make([]string, len(filter.Outcomes))
		for i, outcome := range filter.Outcomes {
			args = append(args, outcome)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("outcome IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}
