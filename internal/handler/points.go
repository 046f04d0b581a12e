package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/auth"
	"github.com/sakif/gitpoints/internal/model"
	"github.com/sakif/gitpoints/internal/service"
)

// PointsService is what the points routes need. *service.PointsService
// implements it.
type PointsService interface {
	FullScan(ctx context.Context, username string) (*service.ScanReport, error)
	QuickScan(ctx context.Context, username string) (*service.ScanReport, error)
	CheckIn(ctx context.Context, username string) (model.CheckInResult, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	DebugUser(ctx context.Context, username string) (*model.UserRecord, bool, error)
}

var _ PointsService = (*service.PointsService)(nil)

// PointsHandler serves scans, check-ins, the leaderboard and the debug view.
type PointsHandler struct {
	points PointsService
	logger *slog.Logger
}

func NewPointsHandler(points PointsService, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{
		points: points,
		logger: logger.With(slog.String("component", "points_handler")),
	}
}

// ScanResponse is the body of both scan routes.
type ScanResponse struct {
	Username    string `json:"username"`
	RepoCount   int    `json:"repoCount"`
	CommitCount int    `json:"commitCount"`
	Points      int    `json:"points"`
	Message     string `json:"message"`
}

// CheckInResponse is the body of a successful check-in.
type CheckInResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	NewPoints     int    `json:"newPoints"`
	DailyCheckIns int    `json:"dailyCheckIns"`
}

func newScanResponse(r *service.ScanReport, message string) ScanResponse {
	return ScanResponse{
		Username:    r.Username,
		RepoCount:   r.RepoCount,
		CommitCount: r.CommitCount,
		Points:      r.Points,
		Message:     message,
	}
}

// HandlePoints runs a full scan and stores the result.
//
// HTTP: GET /api/points/{username}
func (h *PointsHandler) HandlePoints(w http.ResponseWriter, r *http.Request) {
	report, err := h.points.FullScan(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newScanResponse(report, "Points calculated and saved"))
}

// HandleQuickScan estimates points from the public event feed without
// storing anything.
//
// HTTP: GET /api/quick-scan/{username}
func (h *PointsHandler) HandleQuickScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.points.QuickScan(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newScanResponse(report, "Quick scan completed (not saved)"))
}

// HandleCheckIn adds one point for an existing user.
//
// HTTP: POST /api/checkin/{username}
func (h *PointsHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	result, err := h.points.CheckIn(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckInResponse{
		Success:       true,
		Message:       "Check-in successful! +1 point",
		NewPoints:     result.Points,
		DailyCheckIns: result.DailyCheckIns,
	})
}

// HandleLeaderboard lists users by points, highest first.
//
// HTTP: GET /api/leaderboard?limit=N
// limit is optional; without it every user is returned.
func (h *PointsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, h.logger, apperror.ValidationFailed("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.points.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleDebugUser returns the raw stored record, access token included.
//
// HTTP: GET /api/debug/user/{username}
// Auth: RequireAuth, and only for the session's own username. The route is
// not mounted at all unless DEBUG_ENDPOINT_ENABLED is set.
func (h *PointsHandler) HandleDebugUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	session, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid session required"))
		return
	}
	if session != username {
		writeError(w, r, h.logger, apperror.Forbidden("you can only inspect your own record"))
		return
	}

	user, found, err := h.points.DebugUser(r.Context(), username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]bool{"exists": false})
		return
	}
	writeJSON(w, http.StatusOK, user)
}
