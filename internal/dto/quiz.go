package dto

// QuizAnswer is the learner's answer to one question.
type QuizAnswer struct {
	QuestionID string   `json:"question_id" validate:"required"`
	OptionIDs  []string `json:"option_ids,omitempty"`
	Text       *string  `json:"text,omitempty" validate:"omitempty,max=10000"`
}

// QuizSubmissionRequest is posted to grade a quiz lesson.
type QuizSubmissionRequest struct {
	Answers []QuizAnswer `json:"answers" validate:"dive"`
}

// Question grading states.
const (
	QuestionCorrect   = "correct"
	QuestionIncorrect = "incorrect"
	QuestionPending   = "pending"
)

// QuestionResult is the grading outcome of one question.
type QuestionResult struct {
	QuestionID     string `json:"question_id"`
	Status         string `json:"status"`
	PointsAwarded  int    `json:"points_awarded"`
	PointsPossible int    `json:"points_possible"`
}

// GradeResult is the outcome of an auto-graded submission.
type GradeResult struct {
	AttemptID string           `json:"attempt_id,omitempty"`
	Passed    bool             `json:"passed"`
	Score     float64          `json:"score"`
	Threshold float64          `json:"threshold"`
	Results   []QuestionResult `json:"per_question_results"`
}

// QuizSubmissionResult combines the grade with the completion it may have triggered.
type QuizSubmissionResult struct {
	Grade      GradeResult       `json:"grade"`
	Completion *CompletionResult `json:"completion,omitempty"`
}
