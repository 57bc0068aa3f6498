package dto

// UpdateEnrollmentStatusRequest moves an enrollment to a new status.
type UpdateEnrollmentStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=approved rejected cancelled"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// EnrollmentActor identifies who performs a transition.
type EnrollmentActor struct {
	UserID string
	Role   string
}
