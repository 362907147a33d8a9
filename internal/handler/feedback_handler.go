package handler

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FeedbackHandler collects NPS responses and reports on them.
type FeedbackHandler struct {
	db         *gorm.DB
	authorizer *authz.Authorizer
	audit      audit.Recorder
	now        func() time.Time
}

func NewFeedbackHandler(db *gorm.DB, authorizer *authz.Authorizer, rec audit.Recorder) *FeedbackHandler {
	return &FeedbackHandler{db: db, authorizer: authorizer, audit: rec, now: time.Now}
}

type PublicFeedbackRequest struct {
	Score         *int   `json:"score" validate:"required,gte=0,lte=10"`
	Comment       string `json:"comment" validate:"max=2000"`
	CustomerPhone string `json:"customer_phone" validate:"max=30"`
	CustomerName  string `json:"customer_name" validate:"max=100"`
}

type NPSResponse struct {
	Total      int64   `json:"total"`
	Promoters  int64   `json:"promoters"`
	Passives   int64   `json:"passives"`
	Detractors int64   `json:"detractors"`
	NPS        float64 `json:"nps"`
}

// Submit stores feedback for the restaurant named by :slug. Anonymous callers are welcome;
// an authenticated caller is recorded as the submitter.
func (h *FeedbackHandler) Submit(c echo.Context) error {
	log := logger.FromEcho(c)

	var restaurant model.Restaurant
	if err := h.db.WithContext(c.Request().Context()).
		Where("slug = ?", c.Param("slug")).
		First(&restaurant).Error; err != nil {
		return notFoundOr(err, "restaurant not found")
	}
	if restaurant.SubscriptionLapsed(h.now()) {
		return apperror.PaymentRequired("subscription is not active")
	}
	if !h.authorizer.Enabled(&restaurant, authz.FeatureFeedback) {
		return apperror.ModuleNotEnabled(authz.FeatureFeedback)
	}

	var req PublicFeedbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	feedback := model.Feedback{
		RestaurantID: restaurant.ID,
		Score:        *req.Score,
		Comment:      strings.TrimSpace(req.Comment),
	}
	if p := middleware.Principal(c); p != nil {
		feedback.SubmittedBy = &p.ID
	}

	err := h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if phone := normalizePhone(req.CustomerPhone); phone != "" {
			customer := model.Customer{RestaurantID: restaurant.ID, Phone: phone}
			if err := tx.Where(customer).
				Attrs(model.Customer{Name: strings.TrimSpace(req.CustomerName)}).
				FirstOrCreate(&customer).Error; err != nil {
				return err
			}
			feedback.CustomerID = &customer.ID
		}
		return tx.Create(&feedback).Error
	})
	if err != nil {
		return apperror.Internal(err)
	}

	log.Info("Feedback received",
		zap.Uint("restaurant_id", restaurant.ID),
		zap.Int("score", feedback.Score),
		zap.Bool("authenticated", feedback.SubmittedBy != nil))

	entry := audit.Entry{
		RestaurantID: &restaurant.ID,
		Action:       "feedback.submit",
		Resource:     "feedback",
		ResourceID:   uintString(feedback.ID),
		Payload:      map[string]int{"score": feedback.Score},
		IPAddress:    c.RealIP(),
		RequestID:    middleware.RequestID(c),
	}
	if feedback.SubmittedBy != nil {
		entry.ActorID = *feedback.SubmittedBy
	}
	h.audit.Record(c.Request().Context(), entry)

	return c.JSON(http.StatusCreated, newFeedbackResponse(&feedback))
}

// List pages through feedback, newest first. ?category=promoter|passive|detractor filters.
func (h *FeedbackHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	db, err := h.filtered(c, restaurantID)
	if err != nil {
		return err
	}
	switch c.QueryParam("category") {
	case "":
	case "promoter":
		db = db.Where("score >= 9")
	case "passive":
		db = db.Where("score BETWEEN 7 AND 8")
	case "detractor":
		db = db.Where("score <= 6")
	default:
		return apperror.BadRequest("unknown category")
	}

	var items []model.Feedback
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(items, newFeedbackResponse))
}

// NPS returns promoters minus detractors as a percentage of responses.
func (h *FeedbackHandler) NPS(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	db, err := h.filtered(c, restaurantID)
	if err != nil {
		return err
	}

	var row struct {
		Total      int64
		Promoters  int64
		Detractors int64
	}
	if err := db.Select("COUNT(*) AS total, " +
		"COALESCE(SUM(CASE WHEN score >= 9 THEN 1 ELSE 0 END), 0) AS promoters, " +
		"COALESCE(SUM(CASE WHEN score <= 6 THEN 1 ELSE 0 END), 0) AS detractors").
		Scan(&row).Error; err != nil {
		return apperror.Internal(err)
	}

	return c.JSON(http.StatusOK, computeNPS(row.Total, row.Promoters, row.Detractors))
}

func computeNPS(total, promoters, detractors int64) NPSResponse {
	resp := NPSResponse{
		Total:      total,
		Promoters:  promoters,
		Detractors: detractors,
		Passives:   total - promoters - detractors,
	}
	if total > 0 {
		resp.NPS = math.Round(float64(promoters-detractors)*1000/float64(total)) / 10
	}
	return resp
}

// filtered scopes feedback to the restaurant and the optional from/to range.
func (h *FeedbackHandler) filtered(c echo.Context, restaurantID uint) (*gorm.DB, error) {
	db := h.db.WithContext(c.Request().Context()).Model(&model.Feedback{}).Scopes(model.ForRestaurant(restaurantID))

	from, err := parseDateParam(c.QueryParam("from"))
	if err != nil {
		return nil, apperror.BadRequest("invalid from date")
	}
	to, err := parseDateParam(c.QueryParam("to"))
	if err != nil {
		return nil, apperror.BadRequest("invalid to date")
	}
	if from != nil {
		db = db.Where("created_at >= ?", *from)
	}
	if to != nil {
		db = db.Where("created_at < ?", *to)
	}
	return db, nil
}

var errBadDate = errors.New("bad date")

// parseDateParam accepts RFC 3339 timestamps or YYYY-MM-DD dates.
func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errBadDate
}
