package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/model"
)

const (
	defaultSubmissionCacheTTL = 30 * time.Minute
	submissionCacheKeyPrefix  = "judging:submission:"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrDuplicateID means an insert collided with an existing primary key.
	ErrDuplicateID = errors.New("duplicate id")
)

// SubmissionRepository persists grading sessions.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error
	GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error)
	// Finalize moves a Processing submission to status. It returns the status
	// stored afterwards and whether this call was the one that applied it.
	Finalize(ctx context.Context, submissionID string, status model.SubmissionStatus, at time.Time) (model.SubmissionStatus, bool, error)
	// Delete removes the submission and its results in one transaction.
	Delete(ctx context.Context, submissionID string) error
	// ListStale returns Processing sessions of mode created before cutoff.
	ListStale(ctx context.Context, mode model.Mode, cutoff time.Time, limit int) ([]model.StaleSession, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
// Only terminal submissions are cached because they can no longer change.
type MySQLSubmissionRepository struct {
	db    db.Database
	cache cache.Cache
	ttl   time.Duration
}

// NewSubmissionRepository creates a submission repository with defaults.
func NewSubmissionRepository(database db.Database, cacheClient cache.Cache) *MySQLSubmissionRepository {
	return NewSubmissionRepositoryWithTTL(database, cacheClient, defaultSubmissionCacheTTL)
}

// NewSubmissionRepositoryWithTTL creates a submission repository with custom TTL.
func NewSubmissionRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl time.Duration) *MySQLSubmissionRepository {
	if ttl <= 0 {
		ttl = defaultSubmissionCacheTTL
	}
	return &MySQLSubmissionRepository{
		db:    database,
		cache: cacheClient,
		ttl:   ttl,
	}
}

const submissionColumns = "id, mode, user_id, problem_id, language_id, code, status_id, token, total_test_cases, created_at, finalized_at"

// Create inserts a submission record.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.ID == "" {
		return errors.New("submission id is required")
	}
	if submission.ProblemID <= 0 {
		return errors.New("problemID is required")
	}
	if submission.TotalTestCases <= 0 {
		return errors.New("totalTestCases must be positive")
	}

	query := `
		INSERT INTO submissions
		(id, mode, user_id, problem_id, language_id, code, status_id, token, total_test_cases, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.ID,
		string(submission.Mode),
		submission.UserID,
		submission.ProblemID,
		submission.LanguageID,
		submission.Code,
		int(submission.Status),
		submission.Token,
		submission.TotalTestCases,
		submission.CreatedAt,
	)
	return duplicateAsSentinel(err)
}

func duplicateAsSentinel(err error) error {
	if key, ok := db.DuplicateKey(err); ok {
		return fmt.Errorf("%w: key %s", ErrDuplicateID, key)
	}
	return err
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	if r.cache != nil && tx == nil {
		if cached, err := r.cache.Get(ctx, submissionCacheKey(submissionID)); err == nil && cached != "" {
			if submission, err := unmarshalSubmission(cached); err == nil {
				return submission, nil
			}
		}
	}
	submission, err := r.getByIDFromDB(ctx, tx, submissionID)
	if err != nil {
		return nil, err
	}
	if tx == nil && submission.Status.IsTerminal() {
		r.setCache(ctx, submission)
	}
	return submission, nil
}

func (r *MySQLSubmissionRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID)
	submission := &model.Submission{}
	var (
		mode   string
		status int
	)
	if err := row.Scan(
		&submission.ID,
		&mode,
		&submission.UserID,
		&submission.ProblemID,
		&submission.LanguageID,
		&submission.Code,
		&status,
		&submission.Token,
		&submission.TotalTestCases,
		&submission.CreatedAt,
		&submission.FinalizedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	submission.Mode = model.Mode(mode)
	submission.Status = model.SubmissionStatus(status)
	return submission, nil
}

// Finalize applies the Processing -> terminal transition with a conditional update.
func (r *MySQLSubmissionRepository) Finalize(ctx context.Context, submissionID string, status model.SubmissionStatus, at time.Time) (model.SubmissionStatus, bool, error) {
	if !status.IsTerminal() {
		return 0, false, fmt.Errorf("status %v is not terminal", status)
	}
	result, err := r.db.Exec(ctx,
		"UPDATE submissions SET status_id = ?, finalized_at = ? WHERE id = ? AND status_id = ?",
		int(status), at, submissionID, int(model.StatusProcessing),
	)
	if err != nil {
		return 0, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected == 1 {
		return status, true, nil
	}

	var stored int
	row := r.db.QueryRow(ctx, "SELECT status_id FROM submissions WHERE id = ? LIMIT 1", submissionID)
	if err := row.Scan(&stored); err != nil {
		if db.IsNoRows(err) {
			return 0, false, ErrSubmissionNotFound
		}
		return 0, false, err
	}
	return model.SubmissionStatus(stored), false, nil
}

// Delete removes result rows first, then the submission row.
func (r *MySQLSubmissionRepository) Delete(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return errors.New("submissionID is required")
	}
	err := r.db.Transaction(ctx, func(tx db.Transaction) error {
		if _, err := tx.Exec(ctx, "DELETE FROM test_case_results WHERE submission_id = ?", submissionID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM submissions WHERE id = ?", submissionID)
		return err
	})
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, submissionCacheKey(submissionID))
	}
	return nil
}

// ListStale returns the oldest Processing sessions of mode created before cutoff.
func (r *MySQLSubmissionRepository) ListStale(ctx context.Context, mode model.Mode, cutoff time.Time, limit int) ([]model.StaleSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		"SELECT id, mode FROM submissions WHERE mode = ? AND status_id = ? AND created_at < ? ORDER BY created_at LIMIT ?",
		string(mode), int(model.StatusProcessing), cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.StaleSession
	for rows.Next() {
		var (
			s       model.StaleSession
			rawMode string
		)
		if err := rows.Scan(&s.ID, &rawMode); err != nil {
			return nil, err
		}
		s.Mode = model.Mode(rawMode)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *MySQLSubmissionRepository) setCache(ctx context.Context, submission *model.Submission) {
	if submission == nil || r.cache == nil {
		return
	}
	payload := marshalSubmission(submission)
	if payload == "" {
		return
	}
	_ = r.cache.Set(ctx, submissionCacheKey(submission.ID), payload, cache.JitterTTL(r.ttl))
}

func submissionCacheKey(submissionID string) string {
	return submissionCacheKeyPrefix + submissionID
}

func marshalSubmission(submission *model.Submission) string {
	data, err := json.Marshal(submission)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalSubmission(data string) (*model.Submission, error) {
	var submission model.Submission
	if err := json.Unmarshal([]byte(data), &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}
