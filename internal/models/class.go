package models

import "time"

// Class represents a course section.
type Class struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Subject    string    `db:"subject" json:"subject"`
	GradeLevel string    `db:"grade_level" json:"grade_level"`
	TeacherID  *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherIDValue returns the assigned teacher or an empty string.
func (c Class) TeacherIDValue() string {
	if c.TeacherID == nil {
		return ""
	}
	return *c.TeacherID
}

// ClassScope restricts class listings. The zero value lists every class.
type ClassScope struct {
	TeacherID string
	ClassIDs  []string
}

// Classroom is a physical room that schedule events book.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Building  string    `db:"building" json:"building"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
