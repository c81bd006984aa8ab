// Package login exposes the HTTP endpoints for interactive login, logout
// and the login audit log.
package login

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/authcore/audit"
	"go.pilab.hu/authcore/httpauth"
	"go.pilab.hu/authcore/internal/metrics"
	"go.pilab.hu/authcore/session"
	"go.pilab.hu/authcore/user"
)

type credentials struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

type auditRecordResponse struct {
	ID         int64    `json:"id"`
	LocalNode  string   `json:"local_node"`
	PreviousID int64    `json:"previous_id,omitempty"`
	RemoteIP   string   `json:"remote_ip"`
	UserAgent  string   `json:"user_agent"`
	UserID     string   `json:"user_id"`
	LoginAt    int64    `json:"login_at"`
	Outcome    string   `json:"outcome"`
	Valid      bool     `json:"valid"`
}

// Resource wires the login endpoints.
type Resource struct {
	identity user.IdentityStore
	audit    *audit.Service
	cookies  *session.Manager
}

// NewResource creates the resource.
func NewResource(identity user.IdentityStore, auditSvc *audit.Service, cookies *session.Manager) *Resource {
	return &Resource{
		identity: identity,
		audit:    auditSvc,
		cookies:  cookies,
	}
}

// Register registers the unauthenticated endpoints.
func (res *Resource) Register(e *echo.Echo) {
	e.POST("/api/v1/login", res.Login)
	e.POST("/api/v1/logout", res.Logout)
}

// RegisterProtected registers the endpoints behind the authentication
// middleware. Audit log access additionally requires the admin role.
func (res *Resource) RegisterProtected(g *echo.Group) {
	g.GET("/api/v1/user", res.User)
	g.GET("/api/v1/audit/records", res.AuditRecords, httpauth.RequireRole("admin"))
	g.GET("/api/v1/audit/records/:id", res.AuditRecord, httpauth.RequireRole("admin"))
}

// Login verifies the posted credentials, records the attempt in the audit
// log and establishes a session on success. An attempt that cannot be
// recorded fails, whatever the credentials said.
func (res *Resource) Login(c echo.Context) error {
	var creds credentials
	if err := c.Bind(&creds); err != nil || creds.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and password are required")
	}

	r := c.Request()
	remoteIP := c.RealIP()
	userAgent := r.UserAgent()

	info, err := res.identity.Verify(r.Context(), creds.UserID, creds.Password)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, user.ErrInvalidCredentials) {
			metrics.LoginFailureTotal.Inc()
			if auditErr := res.audit.Append(r.Context(), remoteIP, userAgent, creds.UserID, audit.OutcomeFailed); auditErr != nil {
				log.Ctx(r.Context()).Error().Err(auditErr).Msg("cannot record failed login")
				return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
			}
			log.Ctx(r.Context()).Info().Str("user_id", creds.UserID).Str("remote_ip", remoteIP).Msg("login rejected")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		log.Ctx(r.Context()).Error().Err(err).Str("user_id", creds.UserID).Msg("credential check failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}

	if err := res.audit.Append(r.Context(), remoteIP, userAgent, info.UserID, audit.OutcomePassed); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("cannot record successful login")
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}

	if _, err := res.cookies.Issue(c.Response(), r, info.UserID); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("user_id", info.UserID).Msg("cannot establish session")
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}

	metrics.LoginSuccessTotal.Inc()
	log.Ctx(r.Context()).Info().Str("user_id", info.UserID).Str("remote_ip", remoteIP).Msg("login succeeded")
	return c.JSON(http.StatusOK, userResponse{UserID: info.UserID, Roles: info.Roles})
}

// Logout clears the session cookie. It succeeds whether or not a session
// existed.
func (res *Resource) Logout(c echo.Context) error {
	res.cookies.Invalidate(c.Response())
	return c.NoContent(http.StatusNoContent)
}

// User returns the authenticated identity of the request.
func (res *Resource) User(c echo.Context) error {
	result := httpauth.ResultFromContext(c)
	return c.JSON(http.StatusOK, userResponse{UserID: result.UserID, Roles: result.Roles})
}

// AuditRecords returns audit records matching the query parameters from,
// to (epoch millis), remote_ip, user (regex) and limit.
func (res *Resource) AuditRecords(c echo.Context) error {
	q := audit.Query{
		RemoteIP:    c.QueryParam("remote_ip"),
		UserPattern: c.QueryParam("user"),
	}
	var err error
	if q.From, err = parseMillisParam(c.QueryParam("from")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from must be epoch milliseconds")
	}
	if q.To, err = parseMillisParam(c.QueryParam("to")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to must be epoch milliseconds")
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if q.Limit, err = strconv.Atoi(raw); err != nil || q.Limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}

	records, err := res.audit.Find(c.Request().Context(), q)
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("audit query failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "audit log unavailable")
	}

	response := make([]auditRecordResponse, 0, len(records))
	for _, record := range records {
		response = append(response, toAuditResponse(record))
	}
	return c.JSON(http.StatusOK, response)
}

// AuditRecord returns a single audit record by id.
func (res *Resource) AuditRecord(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be an integer")
	}
	record, err := res.audit.Record(c.Request().Context(), id)
	if errors.Is(err, audit.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no such audit record")
	}
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("audit lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "audit log unavailable")
	}
	return c.JSON(http.StatusOK, toAuditResponse(*record))
}

func toAuditResponse(record audit.RecordData) auditRecordResponse {
	return auditRecordResponse{
		ID:         record.ID,
		LocalNode:  record.LocalNode,
		PreviousID: record.PreviousID,
		RemoteIP:   record.RemoteIP,
		UserAgent:  record.UserAgent,
		UserID:     record.UserID,
		LoginAt:    record.LoginAt.UnixMilli(),
		Outcome:    string(record.Outcome),
		Valid:      record.Valid,
	}
}

func parseMillisParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
