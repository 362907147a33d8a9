package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"gorm.io/gorm"
)

// Customer segments
const (
	SegmentNew      = "new"
	SegmentRegular  = "regular"
	SegmentVIP      = "vip"
	SegmentInactive = "inactive"
)

const (
	vipVisits      = 10
	vipPoints      = 1000
	newWindow      = 30 * 24 * time.Hour
	inactiveWindow = 60 * 24 * time.Hour
)

// CustomerHandler manages the restaurant's customer book.
type CustomerHandler struct {
	db    *gorm.DB
	audit audit.Recorder
	now   func() time.Time
}

func NewCustomerHandler(db *gorm.DB, rec audit.Recorder) *CustomerHandler {
	return &CustomerHandler{db: db, audit: rec, now: time.Now}
}

type CustomerRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Phone string `json:"phone" validate:"required,max=30"`
	Email string `json:"email" validate:"omitempty,email,max=100"`
}

func (r *CustomerRequest) normalize() { r.Email = normalizeEmail(r.Email) }

type SegmentsResponse struct {
	Counts    map[string]int     `json:"counts"`
	Segment   string             `json:"segment,omitempty"`
	Customers []CustomerResponse `json:"customers,omitempty"`
}

// List pages through customers; q filters by name, phone or email.
func (h *CustomerHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	db := h.db.WithContext(c.Request().Context()).Model(&model.Customer{}).Scopes(model.ForRestaurant(restaurantID))
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return apperror.Internal(err)
	}
	var customers []model.Customer
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		return apperror.Internal(err)
	}

	return c.JSON(http.StatusOK, ListResponse[CustomerResponse]{
		Items:  mapSlice(customers, newCustomerResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *CustomerHandler) Get(c echo.Context) error {
	customer, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCustomerResponse(customer))
}

func (h *CustomerHandler) Create(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req CustomerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	phone := normalizePhone(req.Phone)
	if phone == "" {
		return apperror.Validation("phone is invalid")
	}

	customer := model.Customer{
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(req.Name),
		Phone:        phone,
		Email:        req.Email,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&customer).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("customer with this phone already exists")
		}
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "customer.create", "customer", customer.ID, nil)
	return c.JSON(http.StatusCreated, newCustomerResponse(&customer))
}

func (h *CustomerHandler) Update(c echo.Context) error {
	customer, err := h.find(c)
	if err != nil {
		return err
	}

	var req CustomerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	phone := normalizePhone(req.Phone)
	if phone == "" {
		return apperror.Validation("phone is invalid")
	}

	customer.Name = strings.TrimSpace(req.Name)
	customer.Phone = phone
	customer.Email = req.Email
	if err := h.db.Model(customer).Select("name", "phone", "email").Updates(customer).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("customer with this phone already exists")
		}
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "customer.update", "customer", customer.ID, nil)
	return c.JSON(http.StatusOK, newCustomerResponse(customer))
}

// Segments buckets customers into new, regular, vip and inactive. ?segment=<name> also
// returns the customers in that bucket.
func (h *CustomerHandler) Segments(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	wanted := c.QueryParam("segment")
	switch wanted {
	case "", SegmentNew, SegmentRegular, SegmentVIP, SegmentInactive:
	default:
		return apperror.BadRequest("unknown segment")
	}

	var customers []model.Customer
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		Order("id ASC").
		Find(&customers).Error; err != nil {
		return apperror.Internal(err)
	}

	now := h.now()
	resp := SegmentsResponse{
		Counts:  map[string]int{SegmentNew: 0, SegmentRegular: 0, SegmentVIP: 0, SegmentInactive: 0},
		Segment: wanted,
	}
	for i := range customers {
		segment := SegmentOf(&customers[i], now)
		resp.Counts[segment]++
		if segment == wanted {
			resp.Customers = append(resp.Customers, newCustomerResponse(&customers[i]))
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// SegmentOf classifies a customer at now. Inactivity wins over every other bucket.
func SegmentOf(c *model.Customer, now time.Time) string {
	lastSeen := c.CreatedAt
	if c.LastVisitAt != nil {
		lastSeen = *c.LastVisitAt
	}
	switch {
	case now.Sub(lastSeen) > inactiveWindow:
		return SegmentInactive
	case c.VisitCount >= vipVisits || c.Points >= vipPoints:
		return SegmentVIP
	case c.VisitCount <= 1 && now.Sub(c.CreatedAt) <= newWindow:
		return SegmentNew
	default:
		return SegmentRegular
	}
}

func (h *CustomerHandler) find(c echo.Context) (*model.Customer, error) {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}

	var customer model.Customer
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		First(&customer, id).Error; err != nil {
		return nil, notFoundOr(err, "customer not found")
	}
	return &customer, nil
}

func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '+' {
			return r
		}
		return -1
	}, phone)
}
