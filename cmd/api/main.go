package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kamauw/familyholdings/pkg/config"
	"github.com/kamauw/familyholdings/pkg/ledger"
	"github.com/kamauw/familyholdings/pkg/models"
	"github.com/kamauw/familyholdings/pkg/store"
	"github.com/shopspring/decimal"
)

// Server holds the ledger instance and request plumbing configuration.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage // Keep a reference to the storage to close it
	mockAuth bool
	corsOrig string
}

func NewServer(s store.Storage, cfg *config.Config) *Server {
	return &Server{
		ledger:   ledger.NewLedger(s),
		storage:  s,
		mockAuth: cfg.MockAuth,
		corsOrig: cfg.CORSOrigin,
	}
}

// --- auth ---

type contextKey string

const userContextKey contextKey = "user"

type authUser struct {
	ID   uuid.UUID
	Role models.Role
}

func (u authUser) isAdmin() bool {
	return u.Role == models.RoleAdmin
}

// authMiddleware resolves the caller from the X-User-Id / X-User-Role headers.
// JWT validation is out of scope; upstream infrastructure injects the headers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := r.Header.Get("X-User-Id")
		roleStr := r.Header.Get("X-User-Role")

		if idStr == "" {
			if !s.mockAuth {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			// Development admin for rapid local iteration.
			ctx := context.WithValue(r.Context(), userContextKey, authUser{ID: uuid.Nil, Role: models.RoleAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid user id header", http.StatusUnauthorized)
			return
		}
		role := models.RoleMember
		if roleStr == string(models.RoleAdmin) {
			role = models.RoleAdmin
		}
		ctx := context.WithValue(r.Context(), userContextKey, authUser{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) authUser {
	u, _ := r.Context().Value(userContextKey).(authUser)
	return u
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).isAdmin() {
			http.Error(w, "Admin privileges required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrig)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id, X-User-Role")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrLoanNotFound),
		errors.Is(err, store.ErrContributionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrDuplicatePeriod):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidDuration),
		errors.Is(err, ledger.ErrLoanNotPending),
		errors.Is(err, ledger.ErrLoanNotApproved),
		errors.Is(err, ledger.ErrContributionAlreadyPaid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}

// --- users ---

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getMeHandler(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	user, err := s.ledger.GetUser(me.ID)
	if errors.Is(err, store.ErrUserNotFound) {
		// No profile row yet; present a zeroed transient view.
		writeJSON(w, http.StatusOK, &models.User{ID: me.ID, Role: me.Role})
		return
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.ledger.GetAllUsers()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email              string          `json:"email"`
		FullName           string          `json:"full_name"`
		Role               models.Role     `json:"role"`
		WeeklyContribution decimal.Decimal `json:"weekly_contribution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.FullName == "" {
		http.Error(w, "full_name is required", http.StatusBadRequest)
		return
	}

	user, err := s.ledger.CreateUser(req.Email, req.FullName, req.Role, req.WeeklyContribution)
	if err != nil {
		s.respondError(w, fmt.Errorf("failed to create user: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	me := currentUser(r)
	if !me.isAdmin() && me.ID != id {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	user, err := s.ledger.GetUser(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	var req struct {
		FullName           *string          `json:"full_name"`
		WeeklyContribution *decimal.Decimal `json:"weekly_contribution"`
		BorrowLimitPercent *decimal.Decimal `json:"borrow_limit_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.FullName == nil && req.WeeklyContribution == nil && req.BorrowLimitPercent == nil {
		http.Error(w, "No fields to update", http.StatusBadRequest)
		return
	}

	user, err := s.ledger.GetUser(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.WeeklyContribution != nil {
		user.WeeklyContribution = *req.WeeklyContribution
	}
	if req.BorrowLimitPercent != nil {
		user.BorrowLimitPercent = *req.BorrowLimitPercent
	}
	if err := s.ledger.UpdateUser(user); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// --- contributions ---

func (s *Server) myContributionsHandler(w http.ResponseWriter, r *http.Request) {
	contributions, err := s.ledger.GetContributionsForUser(currentUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contributions)
}

func (s *Server) listContributionsHandler(w http.ResponseWriter, r *http.Request) {
	contributions, err := s.ledger.GetAllContributions()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contributions)
}

func (s *Server) createContributionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     uuid.UUID       `json:"user_id"`
		Amount     decimal.Decimal `json:"amount"`
		PeriodYear int             `json:"period_year"`
		PeriodWeek int             `json:"period_week"`
		DueDate    time.Time       `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := s.ledger.CreateContribution(req.UserID, req.Amount, req.PeriodYear, req.PeriodWeek, req.DueDate)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) markContributionPaidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid contribution ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := s.ledger.Storage().GetContribution(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	me := currentUser(r)
	if !me.isAdmin() && existing.UserID != me.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	c, err := s.ledger.MarkContributionPaid(id, req.Amount, req.Method)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteContributionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid contribution ID", http.StatusBadRequest)
		return
	}
	if err := s.ledger.DeleteContribution(id); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- loans ---

func (s *Server) myLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetLoansForUser(currentUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) requestLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount        decimal.Decimal `json:"amount"`
		DurationWeeks int             `json:"duration_weeks"`
		Reason        string          `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.RequestLoan(currentUser(r).ID, req.Amount, req.DurationWeeks, req.Reason)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.ApproveLoan(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.RejectLoan(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) loanPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := s.ledger.GetLoan(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	me := currentUser(r)
	if !me.isAdmin() && existing.UserID != me.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	payment, loan, err := s.ledger.RecordLoanPayment(id, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"payment": payment,
		"loan":    loan,
	})
}

func (s *Server) reconcileLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.ReconcileLoan(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	if err := s.ledger.DeleteLoan(id); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loanCapacityHandler(w http.ResponseWriter, r *http.Request) {
	capacity, err := s.ledger.GetLoanCapacity(currentUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capacity)
}

// --- stats / admin ---

func (s *Server) statsMeHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.GetStats(currentUser(r).ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) recomputeAllHandler(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.ledger.RecomputeAll()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) recomputeUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	result, err := s.ledger.Recompute(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Audit()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) auditPlanHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.Audit()
	if err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, ledger.RenderPlanSQL(entries))
}

// router wires all routes with auth and CORS middleware applied.
func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware, s.authMiddleware)

	router.HandleFunc("/health", s.healthHandler).Methods("GET")

	router.HandleFunc("/users/me", s.getMeHandler).Methods("GET")
	router.HandleFunc("/users", s.requireAdmin(s.listUsersHandler)).Methods("GET")
	router.HandleFunc("/users", s.requireAdmin(s.createUserHandler)).Methods("POST")
	router.HandleFunc("/users/{id}", s.getUserHandler).Methods("GET")
	router.HandleFunc("/users/{id}", s.requireAdmin(s.updateUserHandler)).Methods("PATCH")

	router.HandleFunc("/contributions/mine", s.myContributionsHandler).Methods("GET")
	router.HandleFunc("/contributions", s.requireAdmin(s.listContributionsHandler)).Methods("GET")
	router.HandleFunc("/contributions", s.requireAdmin(s.createContributionHandler)).Methods("POST")
	router.HandleFunc("/contributions/{id}/mark-paid", s.markContributionPaidHandler).Methods("POST")
	router.HandleFunc("/contributions/{id}", s.requireAdmin(s.deleteContributionHandler)).Methods("DELETE")

	router.HandleFunc("/loans/mine", s.myLoansHandler).Methods("GET")
	router.HandleFunc("/loans/my-capacity", s.loanCapacityHandler).Methods("GET")
	router.HandleFunc("/loans", s.requireAdmin(s.listLoansHandler)).Methods("GET")
	router.HandleFunc("/loans/request", s.requestLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/approve", s.requireAdmin(s.approveLoanHandler)).Methods("POST")
	router.HandleFunc("/loans/{id}/reject", s.requireAdmin(s.rejectLoanHandler)).Methods("POST")
	router.HandleFunc("/loans/{id}/payment", s.loanPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/reconcile", s.requireAdmin(s.reconcileLoanHandler)).Methods("POST")
	router.HandleFunc("/loans/{id}", s.requireAdmin(s.deleteLoanHandler)).Methods("DELETE")

	router.HandleFunc("/stats/me", s.statsMeHandler).Methods("GET")

	router.HandleFunc("/admin/recompute", s.requireAdmin(s.recomputeAllHandler)).Methods("POST")
	router.HandleFunc("/admin/recompute/{id}", s.requireAdmin(s.recomputeUserHandler)).Methods("POST")
	router.HandleFunc("/admin/audit", s.requireAdmin(s.auditHandler)).Methods("GET")
	router.HandleFunc("/admin/audit/plan.sql", s.requireAdmin(s.auditPlanHandler)).Methods("GET")

	return router
}

func main() {
	cfg := config.Load()

	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, cfg)

	log.Printf("Server starting on :%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.router()))
}
