package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

func TestClassRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "subject", "grade_level", "teacher_id", "created_at", "updated_at"}).
		AddRow("c-1", "Math 10A", "Mathematics", "10", "t-1", now, now).
		AddRow("c-2", "Art 11B", "Art", "11", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, subject, grade_level, teacher_id, created_at, updated_at FROM classes WHERE 1=1 AND teacher_id = $1 AND id IN ($2) ORDER BY name ASC")).
		WithArgs("t-1", "c-1").
		WillReturnRows(rows)

	classes, err := repo.List(context.Background(), models.ClassScope{TeacherID: "t-1", ClassIDs: []string{"c-1"}})
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "t-1", classes[0].TeacherIDValue())
	assert.Empty(t, classes[1].TeacherIDValue())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM classrooms ORDER BY building ASC, name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "building", "capacity", "created_at", "updated_at"}).
			AddRow("r-1", "Room 101", "A", 30, now, now))

	rooms, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 30, rooms[0].Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListAttachesClasses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, email FROM teachers WHERE active = TRUE ORDER BY full_name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email"}).
			AddRow("t-1", "Siti Rahma", "siti@example.com").
			AddRow("t-2", "Budi Santoso", "budi@example.com"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT teacher_id, id AS class_id FROM classes WHERE teacher_id IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "class_id"}).
			AddRow("t-1", "c-1").
			AddRow("t-1", "c-3"))

	teachers, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, []string{"c-1", "c-3"}, teachers[0].ClassIDs)
	assert.Equal(t, []string{}, teachers[1].ClassIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, class_id FROM enrollments WHERE student_id = $1 AND status = 'ACTIVE'")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "class_id"}).AddRow("s-1", "c-1"))

	enrollments, err := repo.ListByStudent(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, []models.Enrollment{{StudentID: "s-1", ClassID: "c-1"}}, enrollments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardianRepository(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGuardianRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM guardians g JOIN students s ON s.id = g.student_id WHERE g.parent_id = $1")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).AddRow("s-1", "Ani"))
	children, err := repo.ListChildren(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, []models.Child{{ID: "s-1", FullName: "Ani"}}, children)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM guardians WHERE parent_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("p-1", "s-9").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	linked, err := repo.IsGuardian(context.Background(), "p-1", "s-9")
	require.NoError(t, err)
	assert.False(t, linked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
