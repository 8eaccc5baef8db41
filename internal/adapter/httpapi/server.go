// Package httpapi is the inbound JSON surface consumed by the party UI. It
// translates requests into usecase calls and domain errors into status codes;
// all game rules live below it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomasvalente/coinraid-backend/internal/domain"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/dashboard"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/economy"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/raid"
)

// Server bundles the usecase services behind the HTTP routes
type Server struct {
	RaidService      *raid.Service
	EconomyService   *economy.Service
	DashboardService *dashboard.Service

	wsHandler http.Handler
	apiToken  string
}

// NewServer creates a new HTTP adapter instance
func NewServer(
	raidService *raid.Service,
	economyService *economy.Service,
	dashboardService *dashboard.Service,
	wsHandler http.Handler,
	apiToken string,
) *Server {
	return &Server{
		RaidService:      raidService,
		EconomyService:   economyService,
		DashboardService: dashboardService,
		wsHandler:        wsHandler,
		apiToken:         apiToken,
	}
}

// Handler returns the fully routed and authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/raids", s.handleInitiate)
	mux.HandleFunc("POST /api/raids/{id}/dodge", s.handleDodge)
	mux.HandleFunc("POST /api/members/{id}/award", s.handleAward)
	mux.HandleFunc("POST /api/members/{id}/spend", s.handleSpend)
	mux.HandleFunc("GET /api/members/{id}", s.handleOverview)
	mux.Handle("GET /ws", s.wsHandler)
	return AuthMiddleware(s.apiToken, mux)
}

type initiateRequest struct {
	AttackerID string `json:"attacker_id"`
	VictimID   string `json:"victim_id"`
	Amount     int64  `json:"amount"`
}

type initiateResponse struct {
	AttemptID string     `json:"attempt_id"`
	Blocked   bool       `json:"blocked"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	attackerID, err := uuid.Parse(req.AttackerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attacker_id format")
		return
	}
	victimID, err := uuid.Parse(req.VictimID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid victim_id format")
		return
	}

	result, err := s.RaidService.Initiate(r.Context(), attackerID, victimID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := initiateResponse{
		AttemptID: result.AttemptID.String(),
		Blocked:   result.Blocked,
	}
	if !result.Blocked {
		expiresAt := result.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type dodgeRequest struct {
	CallerID string `json:"caller_id"`
}

func (s *Server) handleDodge(w http.ResponseWriter, r *http.Request) {
	attemptID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attempt id format")
		return
	}
	var req dodgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller_id format")
		return
	}

	if err := s.RaidService.Dodge(r.Context(), attemptID, callerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dodged"})
}

type adjustRequest struct {
	Amount int64 `json:"amount"`
}

type balanceResponse struct {
	MemberID string `json:"member_id"`
	Balance  int64  `json:"balance"`
}

func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	s.handleAdjust(w, r, s.EconomyService.Award)
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	s.handleAdjust(w, r, s.EconomyService.Spend)
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID, amount int64) (int64, error)) {
	memberID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id format")
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := op(r.Context(), memberID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{MemberID: memberID.String(), Balance: balance})
}

type overviewAttempt struct {
	ID              string     `json:"id"`
	AttackerID      string     `json:"attacker_id"`
	VictimID        string     `json:"victim_id"`
	RequestedAmount int64      `json:"requested_amount"`
	SettledAmount   int64      `json:"settled_amount"`
	State           string     `json:"state"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

type overviewEntry struct {
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
}

type overviewResponse struct {
	MemberID string            `json:"member_id"`
	Name     string            `json:"name"`
	Balance  int64             `json:"balance"`
	Shields  int               `json:"shields"`
	Entries  []overviewEntry   `json:"entries"`
	Attempts []overviewAttempt `json:"attempts"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id format")
		return
	}

	overview, err := s.DashboardService.MemberOverview(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := overviewResponse{
		MemberID: overview.Member.ID.String(),
		Name:     overview.Member.Name,
		Balance:  overview.Member.Balance,
		Shields:  overview.Shields,
		Entries:  make([]overviewEntry, 0, len(overview.RecentEntries)),
		Attempts: make([]overviewAttempt, 0, len(overview.RecentAttempts)),
	}
	for _, e := range overview.RecentEntries {
		resp.Entries = append(resp.Entries, overviewEntry{
			TransactionID: e.TransactionID.String(),
			Amount:        e.Amount,
			Type:          string(e.Type),
			CreatedAt:     e.CreatedAt,
		})
	}
	for _, a := range overview.RecentAttempts {
		resp.Attempts = append(resp.Attempts, overviewAttempt{
			ID:              a.ID.String(),
			AttackerID:      a.AttackerID.String(),
			VictimID:        a.VictimID.String(),
			RequestedAmount: a.RequestedAmount,
			SettledAmount:   a.SettledAmount,
			State:           string(a.State),
			ExpiresAt:       a.ExpiresAt,
			ResolvedAt:      a.ResolvedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeDomainError maps domain sentinel errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMemberNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotVictim):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSelfAttack),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("httpapi: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
