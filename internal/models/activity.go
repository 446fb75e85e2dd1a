package models

import "time"

// VolunteerActivity is a service offered by a center that students can
// volunteer for. ProgressPoints is the number of credit hours the activity
// is worth when a submission is approved.
type VolunteerActivity struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description"`
	OwnerID          uint      `gorm:"not null;index" json:"owner_id"`
	ProgressPoints   float64   `gorm:"not null;default:0" json:"progress_points"`
	FormTemplatePath string    `gorm:"size:512" json:"form_template_path"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
