package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/internal/service"
)

// CreateLoanRequest is the payload for lending a book.
type CreateLoanRequest struct {
	BookID   int64  `json:"bookId"`
	MemberID int64  `json:"memberId"`
	LoanDate string `json:"loanDate,omitempty"` // RFC 3339; defaults to now
}

// LoanResponse is the wire shape of a loan.
type LoanResponse struct {
	ID         int64   `json:"id"`
	BookID     int64   `json:"bookId"`
	MemberID   int64   `json:"memberId"`
	LoanDate   string  `json:"loanDate"`
	ReturnDate *string `json:"returnDate,omitempty"`
}

func toLoanResponse(l *domain.Loan) LoanResponse {
	resp := LoanResponse{
		ID:       l.ID,
		BookID:   l.BookID,
		MemberID: l.MemberID,
		LoanDate: l.LoanDate.Format(time.RFC3339),
	}
	if l.ReturnDate != nil {
		s := l.ReturnDate.Format(time.RFC3339)
		resp.ReturnDate = &s
	}
	return resp
}

func toLoanResponses(loans []*domain.Loan) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	return out
}

// LoanHandler exposes the loan lifecycle over HTTP.
type LoanHandler struct {
	loans  *service.LoanService
	logger *slog.Logger
}

// NewLoanHandler creates a new loan handler.
func NewLoanHandler(loans *service.LoanService, logger *slog.Logger) *LoanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanHandler{loans: loans, logger: logger}
}

// Create handles POST /api/loans.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode loan request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.BookID == 0 || req.MemberID == 0 {
		writeError(w, http.StatusBadRequest, "bookId and memberId are required")
		return
	}

	var loanDate *time.Time
	if req.LoanDate != "" {
		t, err := time.Parse(time.RFC3339, req.LoanDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "loanDate must be RFC 3339")
			return
		}
		loanDate = &t
	}

	loan, err := h.loans.CreateLoan(r.Context(), req.BookID, req.MemberID, loanDate)
	if err != nil {
		h.logger.Warn("loan creation rejected",
			slog.Int64("book_id", req.BookID),
			slog.Int64("member_id", req.MemberID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanResponse(loan))
}

// Return handles PUT /api/loans/{id}/return.
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := h.loans.ReturnBook(r.Context(), id)
	if err != nil {
		h.logger.Warn("return rejected", slog.Int64("loan_id", id), slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if loan == nil {
		// Nothing to report rather than a failure.
		writeError(w, http.StatusNotFound, "loan not found")
		return
	}

	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

// Get handles GET /api/loans/{id}.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	loan, err := h.loans.LoanByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

// List handles GET /api/loans. With from and to query parameters it narrows
// to loans whose loan date falls inside the range.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")

	if fromRaw == "" && toRaw == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be RFC 3339")
		return
	}

	loans, err := h.loans.LoansBetween(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": toLoanResponses(loans)})
}

// Active handles GET /api/loans/active.
func (h *LoanHandler) Active(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ActiveLoans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": toLoanResponses(loans)})
}

// Overdue handles GET /api/loans/overdue.
func (h *LoanHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.OverdueLoans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": toLoanResponses(loans)})
}

// MemberLoans handles GET /api/members/{id}/loans.
func (h *LoanHandler) MemberLoans(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	loans, err := h.loans.MemberLoans(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": toLoanResponses(loans)})
}

// BookLoans handles GET /api/books/{id}/loans.
func (h *LoanHandler) BookLoans(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	loans, err := h.loans.BookLoans(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": toLoanResponses(loans)})
}
