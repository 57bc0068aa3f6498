package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ministry-learning-api/internal/models"
)

const lessonColumns = `l.id, l.module_id, m.course_id, m.position AS module_position, m.title AS module_title,
        l.title, l.type, l.position, l.duration, l.is_activity, l.is_locked`

// CourseRepository reads the course catalogue. Courses, modules and lessons are managed
// elsewhere; this service only reads them.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindCourse returns a course by id.
func (r *CourseRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, certificate_template_id FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindTemplate returns a certificate template by id.
func (r *CourseRepository) FindTemplate(ctx context.Context, id string) (*models.CertificateTemplate, error) {
	const query = `SELECT id, title, body, signatory FROM certificate_templates WHERE id = $1`
	var tpl models.CertificateTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// FindLesson returns a lesson together with its module and course ids.
func (r *CourseRepository) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons l JOIN modules m ON m.id = l.module_id WHERE l.id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Outline returns every lesson of the course in (module order, lesson order).
func (r *CourseRepository) Outline(ctx context.Context, courseID string) (*models.CourseOutline, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons l
        JOIN modules m ON m.id = l.module_id
        WHERE m.course_id = $1
        ORDER BY m.position ASC, l.position ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("load course outline: %w", err)
	}
	return &models.CourseOutline{CourseID: courseID, Lessons: lessons}, nil
}
