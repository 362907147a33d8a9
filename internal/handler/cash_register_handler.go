package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CashRegisterHandler manages till sessions. A user holds at most one open session per
// restaurant; the partial unique index on cash_register_sessions backs the pre-check.
type CashRegisterHandler struct {
	db    *gorm.DB
	audit audit.Recorder
	now   func() time.Time
}

func NewCashRegisterHandler(db *gorm.DB, rec audit.Recorder) *CashRegisterHandler {
	return &CashRegisterHandler{db: db, audit: rec, now: time.Now}
}

type OpenSessionRequest struct {
	OpeningBalanceCents int64  `json:"opening_balance_cents" validate:"gte=0"`
	Notes               string `json:"notes" validate:"max=1000"`
}

type CloseSessionRequest struct {
	ClosingBalanceCents int64  `json:"closing_balance_cents" validate:"gte=0"`
	Notes               string `json:"notes" validate:"max=1000"`
}

type CashTransactionRequest struct {
	Type        string `json:"type" validate:"required,oneof=in out"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
}

// Open starts a session for the caller.
func (h *CashRegisterHandler) Open(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req OpenSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var open int64
	if err := h.db.WithContext(c.Request().Context()).Model(&model.CashRegisterSession{}).
		Scopes(model.ForRestaurant(restaurantID)).
		Where("user_id = ? AND status = ?", p.ID, model.SessionOpen).
		Count(&open).Error; err != nil {
		return apperror.Internal(err)
	}
	if open > 0 {
		return apperror.Conflict("a cash register session is already open")
	}

	session := model.CashRegisterSession{
		RestaurantID:        restaurantID,
		UserID:              p.ID,
		Status:              model.SessionOpen,
		OpeningBalanceCents: req.OpeningBalanceCents,
		OpenedAt:            h.now(),
		Notes:               req.Notes,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&session).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("a cash register session is already open")
		}
		return apperror.Internal(err)
	}

	logger.FromEcho(c).Info("Cash register session opened", zap.Uint("session_id", session.ID))
	recordAudit(c, h.audit, "cash_session.open", "cash_register_session", session.ID, req)
	return c.JSON(http.StatusCreated, newCashSessionResponse(&session))
}

var errSessionClosed = errors.New("session is not open")

// Close ends a session, storing the counted and expected balances.
func (h *CashRegisterHandler) Close(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	session, err := h.find(c)
	if err != nil {
		return err
	}
	if !canHandleSession(p, session) {
		return apperror.Forbidden("session belongs to another user")
	}

	var req CloseSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		expected, err := expectedBalance(tx, session)
		if err != nil {
			return err
		}
		closedAt := h.now()
		closing := req.ClosingBalanceCents

		updates := map[string]interface{}{
			"status":                model.SessionClosed,
			"closing_balance_cents": closing,
			"expected_cents":        expected,
			"closed_at":             closedAt,
		}
		if req.Notes != "" {
			updates["notes"] = req.Notes
			session.Notes = req.Notes
		}
		res := tx.Model(session).Where("status = ?", model.SessionOpen).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errSessionClosed
		}

		session.Status = model.SessionClosed
		session.ClosingBalanceCents = &closing
		session.ExpectedCents = &expected
		session.ClosedAt = &closedAt
		return nil
	})
	if errors.Is(err, errSessionClosed) {
		return apperror.BadRequest("session is already closed")
	}
	if err != nil {
		return apperror.Internal(err)
	}

	resp := newCashSessionResponse(session)
	logger.FromEcho(c).Info("Cash register session closed",
		zap.Uint("session_id", session.ID),
		zap.Int64("expected_cents", *session.ExpectedCents),
		zap.Int64("closing_balance_cents", *session.ClosingBalanceCents))
	recordAudit(c, h.audit, "cash_session.close", "cash_register_session", session.ID, resp)
	return c.JSON(http.StatusOK, resp)
}

// Current returns the caller's open session.
func (h *CashRegisterHandler) Current(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var session model.CashRegisterSession
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		Where("user_id = ? AND status = ?", p.ID, model.SessionOpen).
		First(&session).Error; err != nil {
		return notFoundOr(err, "no open cash register session")
	}
	return c.JSON(http.StatusOK, newCashSessionResponse(&session))
}

func (h *CashRegisterHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	userID, err := queryID(c, "user_id")
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	db := h.db.WithContext(c.Request().Context()).Scopes(model.ForRestaurant(restaurantID))
	if status := c.QueryParam("status"); status != "" {
		db = db.Where("status = ?", status)
	}
	if userID != nil {
		db = db.Where("user_id = ?", *userID)
	}

	var sessions []model.CashRegisterSession
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&sessions).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(sessions, newCashSessionResponse))
}

// AddTransaction records money in or out of an open session.
func (h *CashRegisterHandler) AddTransaction(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	session, err := h.find(c)
	if err != nil {
		return err
	}
	if session.Status != model.SessionOpen {
		return apperror.BadRequest("session is closed")
	}
	if !canHandleSession(p, session) {
		return apperror.Forbidden("session belongs to another user")
	}

	var req CashTransactionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	txn := model.CashTransaction{
		RestaurantID: session.RestaurantID,
		SessionID:    session.ID,
		UserID:       p.ID,
		Type:         req.Type,
		AmountCents:  req.AmountCents,
		Description:  req.Description,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&txn).Error; err != nil {
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "cash_transaction.create", "cash_register_session", session.ID, req)
	return c.JSON(http.StatusCreated, newCashTransactionResponse(&txn))
}

func (h *CashRegisterHandler) ListTransactions(c echo.Context) error {
	session, err := h.find(c)
	if err != nil {
		return err
	}

	var txns []model.CashTransaction
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(session.RestaurantID)).
		Where("session_id = ?", session.ID).
		Order("id ASC").
		Find(&txns).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(txns, newCashTransactionResponse))
}

func (h *CashRegisterHandler) find(c echo.Context) (*model.CashRegisterSession, error) {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}

	var session model.CashRegisterSession
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		First(&session, id).Error; err != nil {
		return nil, notFoundOr(err, "cash register session not found")
	}
	return &session, nil
}

// expectedBalance is the opening balance plus cash in minus cash out.
func expectedBalance(tx *gorm.DB, session *model.CashRegisterSession) (int64, error) {
	var sums struct {
		In  int64
		Out int64
	}
	err := tx.Model(&model.CashTransaction{}).
		Scopes(model.ForRestaurant(session.RestaurantID)).
		Where("session_id = ?", session.ID).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS \"in\", "+
			"COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS \"out\"",
			model.CashIn, model.CashOut).
		Scan(&sums).Error
	if err != nil {
		return 0, err
	}
	return session.OpeningBalanceCents + sums.In - sums.Out, nil
}

// canHandleSession allows the session holder, and owners and managers of the restaurant.
func canHandleSession(p *principal.Principal, session *model.CashRegisterSession) bool {
	if p.ID == session.UserID || p.IsElevated() {
		return true
	}
	for _, role := range p.RolesFor(session.RestaurantID) {
		if role == model.RoleOwner || role == model.RoleManager {
			return true
		}
	}
	return false
}
