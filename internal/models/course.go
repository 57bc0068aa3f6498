package models

// LessonType tags the content of a lesson.
type LessonType string

const (
	LessonTypeVideo          LessonType = "VIDEO"
	LessonTypeText           LessonType = "TEXT"
	LessonTypeObjectiveQuiz  LessonType = "OBJECTIVE_QUIZ"
	LessonTypeSubjectiveQuiz LessonType = "SUBJECTIVE_QUIZ"
)

// IsQuiz reports whether the lesson carries questions.
func (t LessonType) IsQuiz() bool {
	return t == LessonTypeObjectiveQuiz || t == LessonTypeSubjectiveQuiz
}

// Course is the aggregate root for modules.
type Course struct {
	ID                    string  `db:"id" json:"id"`
	Title                 string  `db:"title" json:"title"`
	CertificateTemplateID *string `db:"certificate_template_id" json:"certificate_template_id,omitempty"`
}

// HasCertificate reports whether completing the course issues a certificate.
func (c *Course) HasCertificate() bool {
	return c != nil && c.CertificateTemplateID != nil && *c.CertificateTemplateID != ""
}

// CertificateTemplate holds the text printed on a course's certificates.
type CertificateTemplate struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	Body      string `db:"body" json:"body"`
	Signatory string `db:"signatory" json:"signatory"`
}

// Module groups ordered lessons inside a course.
type Module struct {
	ID       string   `db:"id" json:"id"`
	CourseID string   `db:"course_id" json:"course_id"`
	Title    string   `db:"title" json:"title"`
	Order    int      `db:"position" json:"order"`
	Lessons  []Lesson `db:"-" json:"lessons"`
}

// Lesson is a single unit of content.
type Lesson struct {
	ID          string     `db:"id" json:"id"`
	ModuleID    string     `db:"module_id" json:"module_id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	ModuleOrder int        `db:"module_position" json:"module_order"`
	ModuleTitle string     `db:"module_title" json:"module_title"`
	Title       string     `db:"title" json:"title"`
	Type        LessonType `db:"type" json:"type"`
	Order       int        `db:"position" json:"order"`
	Duration    int        `db:"duration" json:"duration"`
	IsActivity  bool       `db:"is_activity" json:"is_activity"`
	IsLocked    bool       `db:"is_locked" json:"is_locked"`
}

// CourseOutline is the course's lessons flattened in (module.order, lesson.order) order.
type CourseOutline struct {
	CourseID string   `json:"course_id"`
	Lessons  []Lesson `json:"lessons"`
}

// Total returns the number of lessons in the course.
func (o *CourseOutline) Total() int {
	if o == nil {
		return 0
	}
	return len(o.Lessons)
}

// IndexOf returns the position of lessonID in course order or -1.
func (o *CourseOutline) IndexOf(lessonID string) int {
	if o == nil {
		return -1
	}
	for i := range o.Lessons {
		if o.Lessons[i].ID == lessonID {
			return i
		}
	}
	return -1
}

// IsLast reports whether lessonID is the final lesson in course order.
func (o *CourseOutline) IsLast(lessonID string) bool {
	idx := o.IndexOf(lessonID)
	return idx >= 0 && idx == len(o.Lessons)-1
}

// NextUnlocked returns the first lesson after lessonID that is not locked.
func (o *CourseOutline) NextUnlocked(lessonID string) *Lesson {
	idx := o.IndexOf(lessonID)
	if idx < 0 {
		return nil
	}
	for i := idx + 1; i < len(o.Lessons); i++ {
		if !o.Lessons[i].IsLocked {
			next := o.Lessons[i]
			return &next
		}
	}
	return nil
}

// Modules regroups the flattened outline by module, preserving order.
func (o *CourseOutline) Modules() []Module {
	if o == nil {
		return nil
	}
	var modules []Module
	for _, lesson := range o.Lessons {
		if n := len(modules); n == 0 || modules[n-1].ID != lesson.ModuleID {
			modules = append(modules, Module{ID: lesson.ModuleID, CourseID: lesson.CourseID, Title: lesson.ModuleTitle, Order: lesson.ModuleOrder})
		}
		modules[len(modules)-1].Lessons = append(modules[len(modules)-1].Lessons, lesson)
	}
	return modules
}
