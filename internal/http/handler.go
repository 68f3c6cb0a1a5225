package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/bidworks/internal/http/middleware"
	"github.com/nurpe/bidworks/internal/model"
	"github.com/nurpe/bidworks/internal/service"
)

type Handler struct {
	jobs          *service.JobService
	visibility    *service.VisibilityService
	leads         *service.LeadService
	bids          *service.BidService
	payments      *service.PaymentService
	memberships   *service.MembershipService
	webhookSecret string
	log           zerolog.Logger
}

func NewHandler(
	jobs *service.JobService,
	visibility *service.VisibilityService,
	leads *service.LeadService,
	bids *service.BidService,
	payments *service.PaymentService,
	memberships *service.MembershipService,
	webhookSecret string,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		jobs:          jobs,
		visibility:    visibility,
		leads:         leads,
		bids:          bids,
		payments:      payments,
		memberships:   memberships,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	// outside the JWT group; the webhook authenticates with its own secret
	router.POST("/payments/webhook", h.paymentWebhook)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.GET("/jobs", h.listVisibleJobs)
	protected.POST("/jobs", h.createJob)
	protected.GET("/jobs/:id", h.getJob)
	protected.PATCH("/jobs/:id", h.updateJob)
	protected.POST("/jobs/:id/cancel", h.cancelJob)
	protected.GET("/jobs/:id/bids", h.listBids)
	protected.POST("/jobs/:id/bids", h.submitBid)
	protected.POST("/jobs/:id/bids/:bidID/accept", h.acceptBid)
	protected.POST("/jobs/:id/bids/:bidID/reject", h.rejectBid)
	protected.GET("/jobs/:id/award.pdf", h.awardDocument)
	protected.GET("/leads/usage", h.leadUsage)
	protected.GET("/leads/usage/export", h.leadUsageExport)
	protected.POST("/admin/cycles/reset", h.resetCycles)
	protected.POST("/admin/obligations/reconcile", h.reconcileObligations)
}

type jobResponse struct {
	ID             string  `json:"id"`
	CustomerID     string  `json:"customer_id"`
	Category       string  `json:"category"`
	Description    string  `json:"description"`
	EstimateAmount float64 `json:"estimate_amount"`
	TimelineDays   int     `json:"timeline_days"`
	Status         string  `json:"status"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AcceptedBidID  *string `json:"accepted_bid_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toJobResponse(job model.Job) jobResponse {
	resp := jobResponse{
		ID:             job.ID.String(),
		CustomerID:     job.CustomerID.String(),
		Category:       job.Category,
		Description:    job.Description,
		EstimateAmount: job.EstimateAmount,
		TimelineDays:   job.TimelineDays,
		Status:         string(job.Status),
		Lat:            job.Lat,
		Lon:            job.Lon,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
	}
	if job.AcceptedBidID != nil {
		id := job.AcceptedBidID.String()
		resp.AcceptedBidID = &id
	}
	return resp
}

type bidResponse struct {
	ID            string  `json:"id"`
	JobID         string  `json:"job_id"`
	ContractorID  string  `json:"contractor_id"`
	Amount        float64 `json:"amount"`
	TimelineStart string  `json:"timeline_start"`
	TimelineEnd   string  `json:"timeline_end"`
	Materials     *string `json:"materials,omitempty"`
	Warranty      *string `json:"warranty,omitempty"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

func toBidResponse(bid model.Bid) bidResponse {
	return bidResponse{
		ID:            bid.ID.String(),
		JobID:         bid.JobID.String(),
		ContractorID:  bid.ContractorID.String(),
		Amount:        bid.Amount,
		TimelineStart: bid.TimelineStart.Format("2006-01-02"),
		TimelineEnd:   bid.TimelineEnd.Format("2006-01-02"),
		Materials:     bid.Materials,
		Warranty:      bid.Warranty,
		Status:        string(bid.Status),
		CreatedAt:     bid.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) listVisibleJobs(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsContractor() {
		c.JSON(http.StatusForbidden, gin.H{"error": "contractors only"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	var cursor model.JobCursor
	if raw := c.Query("cursor_created_at"); raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor_created_at"})
			return
		}
		id, err := uuid.Parse(c.Query("cursor_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor_id"})
			return
		}
		cursor = model.JobCursor{CreatedAt: createdAt, ID: id}
	}

	jobs, next, err := h.visibility.VisibleJobs(c.Request.Context(), principal.UserID, time.Now(), cursor, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobResponse(job))
	}

	body := gin.H{"jobs": items}
	if !next.IsZero() {
		body["cursor_created_at"] = next.CreatedAt.Format(time.RFC3339Nano)
		body["cursor_id"] = next.ID.String()
	}
	c.JSON(http.StatusOK, body)
}

type jobRequest struct {
	Category       string  `json:"category" binding:"required"`
	Description    string  `json:"description" binding:"required"`
	EstimateAmount float64 `json:"estimate_amount" binding:"required"`
	TimelineDays   int     `json:"timeline_days" binding:"required"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
}

func (h *Handler) createJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), service.JobInput{
		Principal:      principal,
		Category:       req.Category,
		Description:    req.Description,
		EstimateAmount: req.EstimateAmount,
		TimelineDays:   req.TimelineDays,
		Lat:            req.Lat,
		Lon:            req.Lon,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobResponse(*job))
}

func (h *Handler) getJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	// Contractors pay for first sight; owners and admins read for free.
	if principal.IsContractor() {
		job, leadCharged, err := h.leads.AccessJobDetail(c.Request.Context(), principal.UserID, jobID, time.Now())
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"job": toJobResponse(*job), "lead_charged": leadCharged})
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": toJobResponse(*job)})
}

func (h *Handler) updateJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.UpdateJob(c.Request.Context(), jobID, service.JobInput{
		Principal:      principal,
		Category:       req.Category,
		Description:    req.Description,
		EstimateAmount: req.EstimateAmount,
		TimelineDays:   req.TimelineDays,
		Lat:            req.Lat,
		Lon:            req.Lon,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(*job))
}

func (h *Handler) cancelJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.jobs.CancelJob(c.Request.Context(), jobID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(*job))
}

func (h *Handler) listBids(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	bids, err := h.bids.ListBids(c.Request.Context(), jobID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]bidResponse, 0, len(bids))
	for _, bid := range bids {
		items = append(items, toBidResponse(bid))
	}
	c.JSON(http.StatusOK, gin.H{"bids": items})
}

type submitBidRequest struct {
	Amount        float64 `json:"amount" binding:"required"`
	TimelineStart string  `json:"timeline_start" binding:"required"`
	TimelineEnd   string  `json:"timeline_end" binding:"required"`
	Materials     *string `json:"materials"`
	Warranty      *string `json:"warranty"`
}

func (h *Handler) submitBid(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var req submitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := parseDate(req.TimelineStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeline_start"})
		return
	}
	end, err := parseDate(req.TimelineEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeline_end"})
		return
	}

	bid, err := h.bids.SubmitBid(c.Request.Context(), service.SubmitBidInput{
		JobID:         jobID,
		Principal:     principal,
		Amount:        req.Amount,
		TimelineStart: start,
		TimelineEnd:   end,
		Materials:     req.Materials,
		Warranty:      req.Warranty,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBidResponse(*bid))
}

func (h *Handler) acceptBid(c *gin.Context) {
	h.decideBid(c, model.BidStatusAccepted)
}

func (h *Handler) rejectBid(c *gin.Context) {
	h.decideBid(c, model.BidStatusRejected)
}

func (h *Handler) decideBid(c *gin.Context, target model.BidStatus) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	bidID, err := uuid.Parse(c.Param("bidID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid id"})
		return
	}

	var bid *model.Bid
	if target == model.BidStatusAccepted {
		bid, err = h.bids.AcceptBid(c.Request.Context(), jobID, bidID, principal)
	} else {
		bid, err = h.bids.RejectBid(c.Request.Context(), jobID, bidID, principal)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBidResponse(*bid))
}

func (h *Handler) awardDocument(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	result, err := h.payments.AwardDocument(c.Request.Context(), jobID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) leadUsage(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsContractor() {
		c.JSON(http.StatusForbidden, gin.H{"error": "contractors only"})
		return
	}

	usage, err := h.leads.Usage(c.Request.Context(), principal.UserID, time.Now())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cycle_start":     usage.CycleStart.Format("2006-01-02"),
		"leads_used":      usage.LeadsUsed,
		"leads_limit":     usage.LeadsLimit,
		"leads_remaining": usage.Remaining(),
	})
}

func (h *Handler) leadUsageExport(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsContractor() {
		c.JSON(http.StatusForbidden, gin.H{"error": "contractors only"})
		return
	}

	result, err := h.leads.UsageStatement(c.Request.Context(), principal.UserID, time.Now())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

type webhookRequest struct {
	BidID          string `json:"bid_id" binding:"required"`
	ObligationType string `json:"obligation_type" binding:"required"`
	Status         string `json:"status" binding:"required"`
}

func (h *Handler) paymentWebhook(c *gin.Context) {
	// the gateway cannot carry our tokens, so callbacks authenticate with a
	// shared secret instead
	if h.webhookSecret != "" {
		supplied := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.webhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bidID, err := uuid.Parse(strings.TrimSpace(req.BidID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid_id"})
		return
	}

	var obligationType model.ObligationType
	switch strings.ToUpper(strings.TrimSpace(req.ObligationType)) {
	case string(model.ObligationDeposit):
		obligationType = model.ObligationDeposit
	case string(model.ObligationCompletion):
		obligationType = model.ObligationCompletion
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid obligation_type"})
		return
	}

	paid := strings.EqualFold(strings.TrimSpace(req.Status), "paid")
	if err := h.payments.ApplyGatewayReport(c.Request.Context(), bidID, obligationType, paid); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) resetCycles(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}

	opened, err := h.memberships.ResetDueCycles(c.Request.Context(), time.Now())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles_opened": opened})
}

func (h *Handler) reconcileObligations(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admins only"})
		return
	}

	repaired, err := h.payments.Reconcile(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids_repaired": repaired})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrLeadLimitExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrJobNotOpen),
		errors.Is(err, service.ErrDuplicateBid),
		errors.Is(err, service.ErrBidAlreadyDecided),
		errors.Is(err, service.ErrJobHasAcceptedBid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
