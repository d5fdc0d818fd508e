package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/dispatch-core/internal/http/middleware"
	"github.com/nurpe/dispatch-core/internal/model"
	"github.com/nurpe/dispatch-core/internal/service"
)

type Handler struct {
	intake       *service.IntakeService
	feed         *service.FeedService
	claims       *service.ClaimService
	tracker      *service.TrackerService
	admin        *service.AdminService
	reports      *service.ReportService
	pollInterval time.Duration
	log          zerolog.Logger
}

type Services struct {
	Intake  *service.IntakeService
	Feed    *service.FeedService
	Claims  *service.ClaimService
	Tracker *service.TrackerService
	Admin   *service.AdminService
	Reports *service.ReportService

	// FeedPollInterval is advertised to feed clients on GET /requests/open.
	FeedPollInterval time.Duration
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		intake:       services.Intake,
		feed:         services.Feed,
		claims:       services.Claims,
		tracker:      services.Tracker,
		admin:        services.Admin,
		reports:      services.Reports,
		pollInterval: services.FeedPollInterval,
		log:          log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/requests", h.createRequest)
	protected.GET("/requests/:id/status", h.requestStatus)
	protected.GET("/requests/:id/status/stream", h.streamStatus)
	protected.GET("/requests/:id/receipt", h.receipt)

	professional := protected.Group("/")
	professional.Use(middleware.RequireRole(model.RoleProfessional))
	professional.GET("/requests/open", h.listOpen)
	professional.POST("/requests/:id/claim", h.claim)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/requests/:id/status", h.forceStatus)
	admin.GET("/requests/export", h.exportLedger)
}

type createRequestRequest struct {
	ServiceName     string `json:"service_name" binding:"required"`
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerContact string `json:"customer_contact" binding:"required,phone"`
	Address         string `json:"address" binding:"required"`
	Notes           string `json:"notes"`
}

type openRequestResponse struct {
	ID           uuid.UUID       `json:"id"`
	ServiceName  string          `json:"service_name"`
	CustomerName string          `json:"customer_name"`
	Address      string          `json:"address"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

type claimResponse struct {
	Result       service.ClaimOutcome  `json:"result"`
	AlreadyOwned bool                  `json:"already_owned,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	Request      *model.ServiceRequest `json:"request,omitempty"`
}

type statusResponse struct {
	Request model.ServiceRequest `json:"request"`
	Label   string               `json:"label"`
}

type forceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type forceStatusResponse struct {
	ID             uuid.UUID           `json:"id"`
	PreviousStatus model.RequestStatus `json:"previous_status"`
	Status         model.RequestStatus `json:"status"`
	Acknowledged   bool                `json:"acknowledged"`
}

func (h *Handler) createRequest(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.intake.CreateRequest(c.Request.Context(), service.CreateRequestInput{
		ServiceName:     req.ServiceName,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		Address:         req.Address,
		Notes:           req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listOpen(c *gin.Context) {
	rows, err := h.feed.ListOpenRequests(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]openRequestResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, openRequestResponse{
			ID:           row.ID,
			ServiceName:  row.ServiceName,
			CustomerName: row.CustomerName,
			Address:      row.Address,
			Total:        row.Price.Total,
			CreatedAt:    row.CreatedAt,
		})
	}
	if h.pollInterval > 0 {
		c.Header(service.PollIntervalHeader, h.pollInterval.String())
	}
	c.JSON(http.StatusOK, gin.H{"requests": items})
}

func (h *Handler) claim(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.claims.AttemptClaim(c.Request.Context(), id, principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if !result.Won() {
		c.JSON(http.StatusConflict, claimResponse{Result: result.Outcome, Reason: result.Reason})
		return
	}
	c.JSON(http.StatusOK, claimResponse{
		Result:       result.Outcome,
		AlreadyOwned: result.AlreadyOwned,
		Request:      result.Request,
	})
}

func (h *Handler) requestStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	snap, err := h.tracker.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{Request: snap.Request, Label: snap.Label})
}

func (h *Handler) streamStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	snapshots, err := h.tracker.Observe(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		snap, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("status", statusResponse{Request: snap.Request, Label: snap.Label})
		return true
	})
}

func (h *Handler) receipt(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	file, err := h.reports.Receipt(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, file)
}

func (h *Handler) forceStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req forceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := model.ParseRequestStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	result, err := h.admin.ForceStatus(c.Request.Context(), principal, id, status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, forceStatusResponse{
		ID:             result.Request.ID,
		PreviousStatus: result.PreviousStatus,
		Status:         result.Request.Status,
		Acknowledged:   true,
	})
}

func (h *Handler) exportLedger(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var statuses []model.RequestStatus
	for _, raw := range c.QueryArray("status") {
		status, err := model.ParseRequestStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		statuses = append(statuses, status)
	}

	file, err := h.reports.ExportLedger(c.Request.Context(), principal, statuses)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, file)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStoreUnavailable):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("store unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func sendFile(c *gin.Context, file *service.ReportFile) {
	c.Header("Content-Disposition", "attachment; filename=\""+file.FileName+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
