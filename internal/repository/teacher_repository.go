package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// TeacherRepository reads teachers and the classes they are assigned to.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

type teacherClassRow struct {
	TeacherID string `db:"teacher_id"`
	ClassID   string `db:"class_id"`
}

// List returns active teachers with their class ids.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, full_name, email FROM teachers WHERE active = TRUE ORDER BY full_name ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	if len(teachers) == 0 {
		return teachers, nil
	}

	const classQuery = `SELECT teacher_id, id AS class_id FROM classes WHERE teacher_id IS NOT NULL ORDER BY name ASC`
	var rows []teacherClassRow
	if err := r.db.SelectContext(ctx, &rows, classQuery); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	byTeacher := make(map[string][]string, len(teachers))
	for _, row := range rows {
		byTeacher[row.TeacherID] = append(byTeacher[row.TeacherID], row.ClassID)
	}
	for i := range teachers {
		teachers[i].ClassIDs = byTeacher[teachers[i].ID]
		if teachers[i].ClassIDs == nil {
			teachers[i].ClassIDs = []string{}
		}
	}
	return teachers, nil
}
