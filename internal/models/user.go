package models

import "time"

// Role values recognised across the platform.
const (
	RoleStudent = "student"
	RoleDoctor  = "doctor"
	RoleCenter  = "center"
	RoleAdmin   = "admin"
)

// User represents an authenticated platform account. Identity management is
// owned by the auth service; this table is referenced by id everywhere else.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;index" json:"role"`
	PhotoURL  string    `gorm:"size:512" json:"photo_url"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StudentDoctor links a student to the doctor supervising their volunteering.
type StudentDoctor struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentUserID uint      `gorm:"not null;uniqueIndex:idx_student_doctor" json:"student_user_id"`
	DoctorUserID  uint      `gorm:"not null;uniqueIndex:idx_student_doctor" json:"doctor_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}
