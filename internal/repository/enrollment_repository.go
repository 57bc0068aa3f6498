package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

// ErrOpenEnrollmentExists is returned when the open-enrollment unique index rejects an insert.
var ErrOpenEnrollmentExists = errors.New("open enrollment already exists")

const uniqueViolation = "23505"

const enrollmentColumns = `e.id, e.user_id, e.course_id, e.status, e.progress, e.rejection_reason, e.enrolled_at,
        e.decided_at, e.decided_by, e.completed_at, e.last_accessed_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN users u ON u.id = e.user_id
JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"progress":     "e.progress",
		"learner_name": "u.full_name",
		"course_title": "c.title",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        u.full_name AS learner_name, u.email AS learner_email, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with learner and course info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := `SELECT ` + enrollmentColumns + `,
        u.full_name AS learner_name, u.email AS learner_email, c.title AS course_title
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindLatestForLearner returns the most recent enrollment of a learner in a course,
// preferring an open one over history.
func (r *EnrollmentRepository) FindLatestForLearner(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e
        WHERE e.user_id = $1 AND e.course_id = $2
        ORDER BY (e.status IN ('pending', 'approved')) DESC, e.enrolled_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsOpen reports whether a pending or approved enrollment exists for the pair.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status IN ('pending', 'approved') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollments (id, user_id, course_id, status, progress, enrolled_at)
VALUES (:id, :user_id, :course_id, :status, :progress, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrOpenEnrollmentExists
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindForUpdate locks an enrollment row for a status transition.
func (r *EnrollmentRepository) FindForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindOpenForUpdate locks the learner's open enrollment in a course. Progress writes are
// serialized on this row.
func (r *EnrollmentRepository) FindOpenForUpdate(ctx context.Context, tx *sqlx.Tx, userID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e
        WHERE e.user_id = $1 AND e.course_id = $2 AND e.status IN ('pending', 'approved') FOR UPDATE`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpdateStatus persists a status transition.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, change models.EnrollmentStatusChange) error {
	const query = `UPDATE enrollments SET status = $1, rejection_reason = $2, decided_by = $3, decided_at = $4 WHERE id = $5`
	if _, err := tx.ExecContext(ctx, query, change.Status, change.RejectionReason, change.DecidedBy, change.DecidedAt, id); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// UpdateProgress stores the recomputed progress percentage.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, tx *sqlx.Tx, id string, update models.EnrollmentProgressUpdate) error {
	const query = `UPDATE enrollments SET progress = $1, completed_at = $2, last_accessed_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, query, update.Progress, update.CompletedAt, update.LastAccessedAt, id); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
