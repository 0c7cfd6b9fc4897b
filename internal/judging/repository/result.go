package repository

import (
	"context"
	"errors"
	"strings"

	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/model"
)

var (
	ErrResultNotFound = errors.New("test case result not found")
)

// ResultRepository persists per-fixture verdicts.
type ResultRepository interface {
	CreateBatch(ctx context.Context, tx db.Transaction, results []model.TestCaseResult) error
	ListBySubmission(ctx context.Context, submissionID string) ([]model.TestCaseResult, error)
	// Apply writes a terminal verdict. Replaying the same update is a no-op.
	// It returns ErrResultNotFound when the row does not exist.
	Apply(ctx context.Context, update model.ResultUpdate) error
}

// MySQLResultRepository implements ResultRepository with MySQL.
type MySQLResultRepository struct {
	db db.Database
}

func NewResultRepository(database db.Database) *MySQLResultRepository {
	return &MySQLResultRepository{db: database}
}

const resultColumns = "id, submission_id, ordinal, verdict, execution_token, stdout, stderr, updated_at"

// CreateBatch inserts all results with a single multi-row statement.
func (r *MySQLResultRepository) CreateBatch(ctx context.Context, tx db.Transaction, results []model.TestCaseResult) error {
	if len(results) == 0 {
		return errors.New("results are required")
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO test_case_results (id, submission_id, ordinal, verdict, updated_at) VALUES ")
	args := make([]interface{}, 0, len(results)*5)
	for i, res := range results {
		if res.ID == "" || res.SubmissionID == "" {
			return errors.New("result id and submission id are required")
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, res.ID, res.SubmissionID, res.Ordinal, int8(res.Verdict), res.UpdatedAt)
	}
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, sb.String(), args...)
	return duplicateAsSentinel(err)
}

// ListBySubmission returns results ordered by fixture position.
func (r *MySQLResultRepository) ListBySubmission(ctx context.Context, submissionID string) ([]model.TestCaseResult, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+resultColumns+" FROM test_case_results WHERE submission_id = ? ORDER BY ordinal",
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TestCaseResult
	for rows.Next() {
		var (
			res  model.TestCaseResult
			code int8
		)
		if err := rows.Scan(
			&res.ID,
			&res.SubmissionID,
			&res.Ordinal,
			&code,
			&res.ExecutionToken,
			&res.Stdout,
			&res.Stderr,
			&res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		verdict, err := model.ParseVerdictCode(code)
		if err != nil {
			return nil, err
		}
		res.Verdict = verdict
		results = append(results, res)
	}
	return results, rows.Err()
}

// Apply runs an unconditional update. MySQL reports zero affected rows for an
// update that changes nothing, so a zero count is followed by an existence probe.
func (r *MySQLResultRepository) Apply(ctx context.Context, update model.ResultUpdate) error {
	if update.ResultID == "" {
		return errors.New("result id is required")
	}
	if update.Verdict.IsPending() {
		return errors.New("pending is not a terminal verdict")
	}
	result, err := r.db.Exec(ctx,
		"UPDATE test_case_results SET verdict = ?, execution_token = ?, stdout = ?, stderr = ?, updated_at = ? WHERE id = ?",
		int8(update.Verdict), update.ExecutionToken, update.Stdout, update.Stderr, update.UpdatedAt, update.ResultID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var one int
	if err := r.db.QueryRow(ctx, "SELECT 1 FROM test_case_results WHERE id = ? LIMIT 1", update.ResultID).Scan(&one); err != nil {
		if db.IsNoRows(err) {
			return ErrResultNotFound
		}
		return err
	}
	return nil
}
