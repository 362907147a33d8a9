package handler

import (
	"time"

	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/principal"
)

// UserResponse is the public view of a user with its restaurants.
type UserResponse struct {
	ID          uint                   `json:"id"`
	Email       string                 `json:"email"`
	Name        string                 `json:"name"`
	Roles       []string               `json:"roles"`
	Restaurants []principal.Membership `json:"restaurants"`
}

func newUserResponse(p *principal.Principal) UserResponse {
	return UserResponse{
		ID:          p.ID,
		Email:       p.Email,
		Name:        p.Name,
		Roles:       p.GlobalRoles,
		Restaurants: p.Memberships,
	}
}

// AccountResponse is the admin view of a user account.
type AccountResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Active      bool       `json:"active"`
	Locked      bool       `json:"locked"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newAccountResponse(u *model.User, now time.Time) AccountResponse {
	return AccountResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Active:      u.Active,
		Locked:      u.IsLocked(now),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// RestaurantResponse is the admin view of a restaurant.
type RestaurantResponse struct {
	ID                 uint       `json:"id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	OwnerID            uint       `json:"owner_id"`
	EnabledModules     []string   `json:"enabled_modules"`
	Currency           string     `json:"currency,omitempty"`
	Timezone           string     `json:"timezone,omitempty"`
	SubscriptionStatus string     `json:"subscription_status"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newRestaurantResponse(r *model.Restaurant) RestaurantResponse {
	settings := r.Settings.Data()
	return RestaurantResponse{
		ID:                 r.ID,
		Name:               r.Name,
		Slug:               r.Slug,
		OwnerID:            r.OwnerID,
		EnabledModules:     r.EnabledModules(),
		Currency:           settings.Currency,
		Timezone:           settings.Timezone,
		SubscriptionStatus: r.SubscriptionStatus,
		SubscriptionEndsAt: r.SubscriptionEndsAt,
		CreatedAt:          r.CreatedAt,
	}
}

type CategoryResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newCategoryResponse(c *model.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

type IngredientResponse struct {
	ID           uint      `json:"id"`
	CategoryID   *uint     `json:"category_id,omitempty"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	CurrentStock int64     `json:"current_stock"`
	MinStock     int64     `json:"min_stock"`
	CostCents    int64     `json:"cost_cents"`
	LowStock     bool      `json:"low_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newIngredientResponse(i *model.Ingredient) IngredientResponse {
	return IngredientResponse{
		ID:           i.ID,
		CategoryID:   i.CategoryID,
		Name:         i.Name,
		Unit:         i.Unit,
		CurrentStock: i.CurrentStock,
		MinStock:     i.MinStock,
		CostCents:    i.CostCents,
		LowStock:     i.LowStock(),
		UpdatedAt:    i.UpdatedAt,
	}
}

type StockMovementResponse struct {
	ID           uint      `json:"id"`
	IngredientID uint      `json:"ingredient_id"`
	UserID       uint      `json:"user_id"`
	Type         string    `json:"type"`
	Quantity     int64     `json:"quantity"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

func newStockMovementResponse(m *model.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		ID:           m.ID,
		IngredientID: m.IngredientID,
		UserID:       m.UserID,
		Type:         m.Type,
		Quantity:     m.Quantity,
		BalanceAfter: m.BalanceAfter,
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
	}
}

type CustomerResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email,omitempty"`
	Points      int        `json:"points"`
	VisitCount  int        `json:"visit_count"`
	LastVisitAt *time.Time `json:"last_visit_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newCustomerResponse(c *model.Customer) CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Points:      c.Points,
		VisitCount:  c.VisitCount,
		LastVisitAt: c.LastVisitAt,
		CreatedAt:   c.CreatedAt,
	}
}

type CouponResponse struct {
	ID            uint       `json:"id"`
	CustomerID    *uint      `json:"customer_id,omitempty"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue int64      `json:"discount_value"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RedeemedAt    *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newCouponResponse(c *model.Coupon) CouponResponse {
	return CouponResponse{
		ID:            c.ID,
		CustomerID:    c.CustomerID,
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		Status:        c.Status,
		ExpiresAt:     c.ExpiresAt,
		RedeemedAt:    c.RedeemedAt,
		CreatedAt:     c.CreatedAt,
	}
}

type OrderItemResponse struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type OrderResponse struct {
	ID         uint                `json:"id"`
	CustomerID *uint               `json:"customer_id,omitempty"`
	Source     string              `json:"source"`
	ExternalID *string             `json:"external_id,omitempty"`
	Status     string              `json:"status"`
	TotalCents int64               `json:"total_cents"`
	Notes      string              `json:"notes,omitempty"`
	Items      []OrderItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func newOrderResponse(o *model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{Name: it.Name, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	return OrderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Source:     o.Source,
		ExternalID: o.ExternalID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		Notes:      o.Notes,
		Items:      items,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

type CashSessionResponse struct {
	ID                  uint       `json:"id"`
	UserID              uint       `json:"user_id"`
	Status              string     `json:"status"`
	OpeningBalanceCents int64      `json:"opening_balance_cents"`
	ClosingBalanceCents *int64     `json:"closing_balance_cents,omitempty"`
	ExpectedCents       *int64     `json:"expected_cents,omitempty"`
	DifferenceCents     *int64     `json:"difference_cents,omitempty"`
	OpenedAt            time.Time  `json:"opened_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

func newCashSessionResponse(s *model.CashRegisterSession) CashSessionResponse {
	resp := CashSessionResponse{
		ID:                  s.ID,
		UserID:              s.UserID,
		Status:              s.Status,
		OpeningBalanceCents: s.OpeningBalanceCents,
		ClosingBalanceCents: s.ClosingBalanceCents,
		ExpectedCents:       s.ExpectedCents,
		OpenedAt:            s.OpenedAt,
		ClosedAt:            s.ClosedAt,
		Notes:               s.Notes,
	}
	if s.ClosingBalanceCents != nil && s.ExpectedCents != nil {
		diff := *s.ClosingBalanceCents - *s.ExpectedCents
		resp.DifferenceCents = &diff
	}
	return resp
}

type CashTransactionResponse struct {
	ID          uint      `json:"id"`
	SessionID   uint      `json:"session_id"`
	UserID      uint      `json:"user_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func newCashTransactionResponse(t *model.CashTransaction) CashTransactionResponse {
	return CashTransactionResponse{
		ID:          t.ID,
		SessionID:   t.SessionID,
		UserID:      t.UserID,
		Type:        t.Type,
		AmountCents: t.AmountCents,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

type FeedbackResponse struct {
	ID         uint      `json:"id"`
	CustomerID *uint     `json:"customer_id,omitempty"`
	Score      int       `json:"score"`
	Category   string    `json:"category"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

func newFeedbackResponse(f *model.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:         f.ID,
		CustomerID: f.CustomerID,
		Score:      f.Score,
		Category:   model.NPSCategory(f.Score),
		Comment:    f.Comment,
		CreatedAt:  f.CreatedAt,
	}
}

type IntegrationResponse struct {
	ID        uint      `json:"id"`
	Platform  string    `json:"platform"`
	StoreRef  string    `json:"store_ref"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func newIntegrationResponse(i *model.Integration) IntegrationResponse {
	return IntegrationResponse{ID: i.ID, Platform: i.Platform, StoreRef: i.StoreRef, Enabled: i.Enabled, CreatedAt: i.CreatedAt}
}

type AuditLogResponse struct {
	ID         uint        `json:"id"`
	ActorID    uint        `json:"actor_id"`
	Action     string      `json:"action"`
	Resource   string      `json:"resource"`
	ResourceID string      `json:"resource_id"`
	Payload    interface{} `json:"payload,omitempty"`
	IPAddress  string      `json:"ip_address"`
	RequestID  string      `json:"request_id"`
	CreatedAt  time.Time   `json:"created_at"`
}

func newAuditLogResponse(l *model.AuditLog) AuditLogResponse {
	resp := AuditLogResponse{
		ID:         l.ID,
		ActorID:    l.ActorID,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		IPAddress:  l.IPAddress,
		RequestID:  l.RequestID,
		CreatedAt:  l.CreatedAt,
	}
	if len(l.Payload) > 0 {
		resp.Payload = l.Payload
	}
	return resp
}

// ListResponse wraps a page of items.
type ListResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func mapSlice[M any, R any](in []M, fn func(*M) R) []R {
	out := make([]R, 0, len(in))
	for i := range in {
		out = append(out, fn(&in[i]))
	}
	return out
}
