package http

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/paylink/internal/domain/entity"
	"github.com/wekeepgrowing/paylink/internal/middleware/auth"
	"github.com/wekeepgrowing/paylink/internal/usecase"
	apperrors "github.com/wekeepgrowing/paylink/pkg/errors"
	"go.uber.org/zap"
)

type LinkHandler struct {
	usecase *usecase.LinkUsecase
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(usecase *usecase.LinkUsecase, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		usecase: usecase,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CreateLinkRequest is the body of POST /api/v1/links. Amount is in the
// smallest currency unit.
type CreateLinkRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
	OrderID  string `json:"order_id" validate:"omitempty,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
}

// StatusResponse is the body of GET /api/v1/links/:id/status
type StatusResponse struct {
	ID     string            `json:"id"`
	Status entity.LinkStatus `json:"status"`
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return httpError(h.logger, c, apperrors.InvalidArgument("invalid request body", err), "Failed to bind create link request")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(h.logger, c, err, "Invalid create link request")
	}

	link, err := h.usecase.CreateLink(c.Request().Context(), usecase.CreateLinkInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		OrderID:  req.OrderID,
		Email:    req.Email,
	})
	if err != nil {
		return httpError(h.logger, c, err, "Failed to create payment link")
	}

	return c.JSON(http.StatusCreated, NewLinkResponse(link, h.baseURL))
}

func (h *LinkHandler) GetLink(c echo.Context) error {
	link, err := h.usecase.GetLink(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(h.logger, c, err, "Failed to get payment link")
	}
	return c.JSON(http.StatusOK, NewLinkResponse(link, h.baseURL))
}

func (h *LinkHandler) GetStatus(c echo.Context) error {
	id := c.Param("id")
	status, err := h.usecase.GetStatus(c.Request().Context(), id)
	if err != nil {
		return httpError(h.logger, c, err, "Failed to get payment link status")
	}
	return c.JSON(http.StatusOK, StatusResponse{ID: id, Status: status})
}

// ListLinks serves the admin listing with order_id, email and status filters
func (h *LinkHandler) ListLinks(c echo.Context) error {
	filter, err := bindFilter(c)
	if err != nil {
		return httpError(h.logger, c, err, "Invalid list query")
	}

	var params entity.PaginationParams
	if err := echo.QueryParamsBinder(c).
		Int("page", &params.Page).
		Int("per_page", &params.PerPage).
		BindError(); err != nil {
		return httpError(h.logger, c, apperrors.InvalidArgument("page and per_page must be integers", err), "Invalid list query")
	}

	page, err := h.usecase.ListLinks(c.Request().Context(), filter, params)
	if err != nil {
		return httpError(h.logger, c, err, "Failed to list payment links")
	}

	data := make([]LinkResponse, 0, len(page.Data))
	for _, link := range page.Data {
		data = append(data, NewLinkResponse(link, h.baseURL))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":       data,
		"pagination": page.Pagination,
	})
}

// ExportCSV serves the matching links as payments.csv
func (h *LinkHandler) ExportCSV(c echo.Context) error {
	filter, err := bindFilter(c)
	if err != nil {
		return httpError(h.logger, c, err, "Invalid export query")
	}

	// Buffer so a failed export still gets a proper error status.
	var buf bytes.Buffer
	rows, err := h.usecase.ExportCSV(c.Request().Context(), &buf, filter)
	if err != nil {
		return httpError(h.logger, c, err, "Failed to export payment links")
	}

	fields := []zap.Field{zap.Int("rows", rows)}
	if admin, err := auth.GetAdminFromContext(c); err == nil {
		fields = append(fields, zap.String("admin_subject", admin.Subject))
	}
	h.logger.Info("Exported payment links", fields...)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="payments.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func bindFilter(c echo.Context) (entity.LinkFilter, error) {
	var filter entity.LinkFilter
	var status string
	if err := echo.QueryParamsBinder(c).
		String("order_id", &filter.OrderID).
		String("email", &filter.Email).
		String("status", &status).
		BindError(); err != nil {
		return filter, apperrors.InvalidArgument("invalid filter", err)
	}
	filter.Status = entity.LinkStatus(status)
	return filter, nil
}
