package models

// Teacher represents an instructor and the classes they teach.
type Teacher struct {
	ID       string   `db:"id" json:"id"`
	FullName string   `db:"full_name" json:"full_name"`
	Email    string   `db:"email" json:"email"`
	ClassIDs []string `db:"-" json:"class_ids"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	StudentID string `db:"student_id" json:"student_id"`
	ClassID   string `db:"class_id" json:"class_id"`
}

// Child is a student linked to a parent account.
type Child struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}
