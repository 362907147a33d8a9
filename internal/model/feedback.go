package model

import "time"

// Feedback is one NPS response, scored 0 to 10.
type Feedback struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;index"`
	CustomerID   *uint     `json:"customer_id,omitempty" gorm:"index"`
	SubmittedBy  *uint     `json:"submitted_by,omitempty"`
	Score        int       `json:"score" gorm:"not null"`
	Comment      string    `json:"comment" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// NPSCategory buckets a score as promoter, passive or detractor.
func NPSCategory(score int) string {
	switch {
	case score >= 9:
		return "promoter"
	case score >= 7:
		return "passive"
	default:
		return "detractor"
	}
}
