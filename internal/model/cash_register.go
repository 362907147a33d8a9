package model

import "time"

// Cash register session states
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// Cash transaction kinds
const (
	CashIn  = "in"
	CashOut = "out"
)

// CashRegisterSession is a till shift. At most one open session per user per restaurant;
// the partial unique index enforces it at the storage layer.
type CashRegisterSession struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`
	RestaurantID        uint       `json:"restaurant_id" gorm:"not null;index;uniqueIndex:idx_cash_open_session,where:status = 'open'"`
	UserID              uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_cash_open_session,where:status = 'open'"`
	Status              string     `json:"status" gorm:"type:varchar(10);not null;default:'open';uniqueIndex:idx_cash_open_session,where:status = 'open'"`
	OpeningBalanceCents int64      `json:"opening_balance_cents" gorm:"not null"`
	ClosingBalanceCents *int64     `json:"closing_balance_cents,omitempty"`
	ExpectedCents       *int64     `json:"expected_cents,omitempty"`
	OpenedAt            time.Time  `json:"opened_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	Notes               string     `json:"notes" gorm:"type:text"`
}

// CashTransaction is a movement of money within a session.
type CashTransaction struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;index"`
	SessionID    uint      `json:"session_id" gorm:"not null;index"`
	UserID       uint      `json:"user_id" gorm:"not null"`
	Type         string    `json:"type" gorm:"type:varchar(10);not null"`
	AmountCents  int64     `json:"amount_cents" gorm:"not null"`
	Description  string    `json:"description" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at"`
}
