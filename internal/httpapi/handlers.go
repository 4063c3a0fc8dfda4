package httpapi

import (
	"errors"
	"net/http"
	"time"

	"receptionist-platform/internal/assistants"
	"receptionist-platform/internal/auth"
	"receptionist-platform/internal/bookings"
	"receptionist-platform/internal/rbac"
	"receptionist-platform/internal/reporting"
	"receptionist-platform/internal/usage"
	"receptionist-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Usage      *usage.Service
	Reports    *reporting.Service
	Bookings   *bookings.Service
	Assistants *assistants.Registry

	// UpgradeURL is where blocked trial tenants are redirected.
	UpgradeURL string
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
}

// Refresh exchanges a valid refresh token for a new pair. Refresh
// tokens carry no role, so the caller restates the one it wants and
// the new access token is scoped to it.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token and role required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, claims.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Usage ---

type recordUsageRequest struct {
	TenantID        string `json:"tenantId"`
	DurationSeconds int    `json:"durationSeconds"`
	CallID          string `json:"callId"`
}

// limitExceededBody is the machine-readable 402 payload consumed by
// the upgrade flow.
type limitExceededBody struct {
	Error        string `json:"error"`
	LimitType    string `json:"limitType"`
	MinutesUsed  int    `json:"minutesUsed"`
	MinutesLimit int    `json:"minutesLimit"`
	CallsUsed    int    `json:"callsUsed"`
	CallsLimit   int    `json:"callsLimit"`
	RedirectTo   string `json:"redirectTo"`
}

// RecordUsage advances the tenant's counters for one completed call.
// A hard-limit breach answers 402 so the platform can steer the tenant
// to the upgrade flow.
func (h Handlers) RecordUsage(c *gin.Context) {
	if h.Usage == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage meter not configured"})
		return
	}
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.TenantID == "" || req.CallID == "" || req.DurationSeconds < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenantId, callId required; durationSeconds must be >= 0"})
		return
	}

	res, err := h.Usage.RecordCallUsage(c.Request.Context(), req.TenantID, req.DurationSeconds, req.CallID)
	if err != nil {
		if errors.Is(err, usage.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		logger.FromGin(c).Error("usage recording failed", "tenant_id", req.TenantID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage recording failed"})
		return
	}

	if res.TrialExpired {
		c.JSON(http.StatusPaymentRequired, limitExceededBody{
			Error:        "TRIAL_EXPIRED",
			MinutesUsed:  res.Period.MinutesUsed,
			MinutesLimit: res.Variant.MinuteLimit,
			CallsUsed:    res.Period.CallCount,
			CallsLimit:   res.Variant.CallLimit,
			RedirectTo:   h.UpgradeURL,
		})
		return
	}
	if res.LimitExceeded {
		c.JSON(http.StatusPaymentRequired, limitExceededBody{
			Error:        "TRIAL_LIMIT_EXCEEDED",
			LimitType:    string(res.LimitType),
			MinutesUsed:  res.Period.MinutesUsed,
			MinutesLimit: res.Variant.MinuteLimit,
			CallsUsed:    res.Period.CallCount,
			CallsLimit:   res.Variant.CallLimit,
			RedirectTo:   h.UpgradeURL,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenantId":         res.TenantID,
		"callsUsed":        res.Period.CallCount,
		"minutesUsed":      res.Period.MinutesUsed,
		"remainingCalls":   res.RemainingCalls,
		"remainingMinutes": res.RemainingMinutes,
		"thresholdReached": res.ThresholdReached,
		"warning":          res.Warning,
	})
}

// GetUsageSnapshot returns current usage for the dashboard.
func (h Handlers) GetUsageSnapshot(c *gin.Context) {
	if h.Usage == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage meter not configured"})
		return
	}
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenantId required"})
		return
	}
	snap, err := h.Usage.Snapshot(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "snapshot failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CanMakeCall is the pre-call gate: allow/deny without mutating state.
func (h Handlers) CanMakeCall(c *gin.Context) {
	if h.Usage == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage meter not configured"})
		return
	}
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenantId required"})
		return
	}
	d, err := h.Usage.CanMakeCall(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "gate check failed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

// --- Reporting ---

func (h Handlers) GetCallsSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{TenantID: tenantID, Range: rng})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetToolSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.ToolSummary(c.Request.Context(), reporting.ToolSummaryRequest{TenantID: tenantID, Range: rng})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Bookings ---

func (h Handlers) ListBookings(c *gin.Context) {
	if h.Bookings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bookings not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	rows, err := h.Bookings.ListByTenant(c.Request.Context(), tenantID, rng.From, rng.To)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": rows})
}

// --- Assistants ---

type registerAssistantRequest struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	PhoneNumber string `json:"phone_number"`
}

func (h Handlers) RegisterAssistant(c *gin.Context) {
	if h.Assistants == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "assistants not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	var req registerAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ExternalID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "external_id required"})
		return
	}
	a := &assistants.Assistant{
		TenantID:    tenantID,
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		PhoneNumber: req.PhoneNumber,
		Active:      true,
	}
	if err := h.Assistants.Register(c.Request.Context(), a); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) ListAssistants(c *gin.Context) {
	if h.Assistants == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "assistants not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rows, err := h.Assistants.List(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistants": rows})
}

// parseRange reads from/to query params (RFC3339), defaulting to the
// trailing 30 days. Writes the error response itself on bad input.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return reporting.TimeRange{}, false
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return reporting.TimeRange{}, false
		}
		rng.To = t
	}
	return rng, true
}

// Convenience middleware bundles.

func RequireTenantAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireTenant(), rbac.RequireAnyRole(roles...)}
}
