package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusApproved  EnrollmentStatus = "approved"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// enrollmentTransitions lists every allowed status change. Rejected and
// cancelled are terminal.
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusPending:  {EnrollmentStatusApproved, EnrollmentStatusRejected},
	EnrollmentStatusApproved: {EnrollmentStatusCancelled},
}

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected, EnrollmentStatusCancelled:
		return true
	}
	return false
}

// Open reports whether the enrollment still blocks a new request for the same course.
func (s EnrollmentStatus) Open() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Enrollment captures a learner's relationship to a course.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	CourseID        string           `db:"course_id" json:"course_id"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	Progress        int              `db:"progress" json:"progress"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	EnrolledAt      time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DecidedAt       *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy       *string          `db:"decided_by" json:"decided_by,omitempty"`
	CompletedAt     *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	LastAccessedAt  *time.Time       `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with learner and course info.
type EnrollmentDetail struct {
	Enrollment
	LearnerName  string `db:"learner_name" json:"learner_name"`
	LearnerEmail string `db:"learner_email" json:"learner_email"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EnrollmentStatusChange carries the values persisted by a transition.
type EnrollmentStatusChange struct {
	Status          EnrollmentStatus
	RejectionReason *string
	DecidedBy       string
	DecidedAt       time.Time
}

// EnrollmentProgressUpdate carries the recomputed progress fields.
type EnrollmentProgressUpdate struct {
	Progress       int
	CompletedAt    *time.Time
	LastAccessedAt *time.Time
}
