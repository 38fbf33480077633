package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/identity"
	"github.com/vanshika/debtbook/internal/ledger"
	"github.com/vanshika/debtbook/internal/service"
)

// APIHandlers exposes HTTP handlers for the chat-transport adapter.
type APIHandlers struct {
	logger      *slog.Logger
	service     *service.DebtService
	minorDigits int32
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, svc *service.DebtService, minorDigits int32) *APIHandlers {
	return &APIHandlers{
		logger:      logger,
		service:     svc,
		minorDigits: minorDigits,
	}
}

func (h *APIHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /messages", h.submitMessage)
	mux.HandleFunc("GET /debts/{id}", h.debtDetail)
	mux.HandleFunc("POST /debts/{id}/confirm", h.confirmDebt)
	mux.HandleFunc("POST /debts/{id}/reject", h.rejectDebt)
	mux.HandleFunc("POST /debts/{id}/payments", h.proposePayment)
	mux.HandleFunc("POST /payments/{id}/confirm", h.confirmPayment)
	mux.HandleFunc("POST /payments/{id}/reject", h.rejectPayment)
	mux.HandleFunc("POST /users", h.registerUser)
	mux.HandleFunc("GET /users/{id}/balances", h.balances)
	mux.HandleFunc("GET /users/{id}/debts", h.listDebts)
	mux.HandleFunc("GET /users/{id}/trust", h.listTrusted)
	mux.HandleFunc("POST /users/{id}/trust", h.trust)
	mux.HandleFunc("DELETE /users/{id}/trust/{trusted}", h.untrust)
}

func (h *APIHandlers) submitMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.SenderID == 0 || strings.TrimSpace(payload.Text) == "" {
		writeError(w, http.StatusBadRequest, "sender_id and text are required")
		return
	}

	result, err := h.service.SubmitMessage(r.Context(), payload.SenderID, payload.Text)
	if err != nil {
		h.fail(w, err, "submit message", "sender_id", payload.SenderID)
		return
	}

	resp := messageResponse{Debts: []debtResponse{}, AutoConfirmed: result.AutoConfirmed}
	for _, d := range result.Debts {
		resp.Debts = append(resp.Debts, h.debt(d))
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *APIHandlers) debtDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.DebtDetail(r.Context(), id)
	if err != nil {
		h.fail(w, err, "debt detail", "debt_id", id)
		return
	}

	resp := debtDetailResponse{
		Debt:      h.debt(detail.Balance.Debt),
		Confirmed: detail.Balance.Confirmed,
		Pending:   detail.Balance.Pending,
		Remaining: detail.Balance.Remaining(),
		Payments:  []paymentResponse{},
	}
	for _, p := range detail.Payments {
		resp.Payments = append(resp.Payments, h.payment(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) confirmDebt(w http.ResponseWriter, r *http.Request) {
	h.debtAction(w, r, "confirm debt", h.service.ConfirmDebt)
}

func (h *APIHandlers) rejectDebt(w http.ResponseWriter, r *http.Request) {
	h.debtAction(w, r, "reject debt", h.service.RejectDebt)
}

func (h *APIHandlers) debtAction(w http.ResponseWriter, r *http.Request, op string, fn debtActionFunc) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := decodeActor(w, r)
	if !ok {
		return
	}
	d, err := fn(r.Context(), id, actor)
	if err != nil {
		h.fail(w, err, op, "debt_id", id, "actor_id", actor)
		return
	}
	respondJSON(w, http.StatusOK, h.debt(d))
}

func (h *APIHandlers) proposePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload paymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.ActorID == 0 || strings.TrimSpace(payload.Amount) == "" {
		writeError(w, http.StatusBadRequest, "actor_id and amount are required")
		return
	}

	p, err := h.service.ProposePayment(r.Context(), id, payload.ActorID, payload.Amount)
	if err != nil {
		h.fail(w, err, "propose payment", "debt_id", id, "actor_id", payload.ActorID)
		return
	}
	respondJSON(w, http.StatusCreated, h.payment(p))
}

func (h *APIHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := decodeActor(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.ConfirmPayment(r.Context(), id, actor)
	if err != nil {
		h.fail(w, err, "confirm payment", "payment_id", id, "actor_id", actor)
		return
	}
	respondJSON(w, http.StatusOK, paymentOutcomeResponse{
		Payment: h.payment(outcome.Payment),
		Debt:    h.debt(outcome.Debt),
		Settled: outcome.Settled,
	})
}

func (h *APIHandlers) rejectPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := decodeActor(w, r)
	if !ok {
		return
	}
	p, err := h.service.RejectPayment(r.Context(), id, actor)
	if err != nil {
		h.fail(w, err, "reject payment", "payment_id", id, "actor_id", actor)
		return
	}
	respondJSON(w, http.StatusOK, h.payment(p))
}

func (h *APIHandlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var payload userRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.service.Register(r.Context(), payload.toDomain())
	if err != nil {
		h.fail(w, err, "register user", "user_id", payload.ID)
		return
	}
	respondJSON(w, http.StatusCreated, userFromDomain(u))
}

func (h *APIHandlers) balances(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.service.Balances(r.Context(), id)
	if err != nil {
		h.fail(w, err, "balances", "user_id", id)
		return
	}

	resp := balancesResponse{
		UserID:     id,
		OwedToUser: b.Summary.OwedToUser,
		OwedByUser: b.Summary.OwedByUser,
		Net:        b.Summary.Net(),
		Display:    amount.Format(b.Summary.Net(), h.minorDigits),
		Rows:       []balanceRow{},
	}
	for _, row := range b.Rows {
		resp.Rows = append(resp.Rows, balanceRow{
			CreditorID: row.CreditorID,
			DebtorID:   row.DebtorID,
			TotalDebt:  row.TotalDebt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) listDebts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	query := r.URL.Query()

	role := ledger.Role(query.Get("role"))
	switch role {
	case ledger.RoleAny, ledger.RoleCreditor, ledger.RoleDebtor:
	default:
		writeError(w, http.StatusBadRequest, "role must be creditor or debtor")
		return
	}

	var statuses []domain.DebtStatus
	if raw := query.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.DebtStatus(strings.TrimSpace(part))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(part))
				return
			}
			statuses = append(statuses, status)
		}
	}

	debts, err := h.service.Debts(r.Context(), id, role, statuses)
	if err != nil {
		h.fail(w, err, "list debts", "user_id", id)
		return
	}
	resp := debtListResponse{Items: []debtResponse{}}
	for _, d := range debts {
		resp.Items = append(resp.Items, h.debt(d))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) listTrusted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rels, err := h.service.Trusted(r.Context(), id)
	if err != nil {
		h.fail(w, err, "list trusted", "user_id", id)
		return
	}
	resp := trustListResponse{Trusted: []int64{}}
	for _, rel := range rels {
		resp.Trusted = append(resp.Trusted, rel.TrustedID)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) trust(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload trustRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Trust(r.Context(), id, payload.TrustedID); err != nil {
		h.fail(w, err, "trust", "user_id", id, "trusted_id", payload.TrustedID)
		return
	}
	respondJSON(w, http.StatusCreated, statusResponse{Status: "ok"})
}

func (h *APIHandlers) untrust(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	trusted, ok := pathID(w, r, "trusted")
	if !ok {
		return
	}
	if err := h.service.Untrust(r.Context(), id, trusted); err != nil {
		h.fail(w, err, "untrust", "user_id", id, "trusted_id", trusted)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// fail maps err onto a status code. Expected business outcomes are logged at debug, the rest
// at error.
func (h *APIHandlers) fail(w http.ResponseWriter, err error, op string, attrs ...any) {
	status := statusFor(err)
	code, _ := domain.CodeOf(err)

	logAttrs := append([]any{"op", op, "status", status, "error", err}, attrs...)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", logAttrs...)
	} else {
		h.logger.Debug("request rejected", logAttrs...)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	respondJSON(w, status, errorResponse{Error: msg, Code: string(code)})
}

func statusFor(err error) int {
	if errors.Is(err, identity.ErrInvalidUser) {
		return http.StatusBadRequest
	}
	code, ok := domain.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeInvalidTransition, domain.CodeAlreadyTerminal, domain.CodeExceedsBalance,
		domain.CodeConcurrentModification, domain.CodeConflict:
		return http.StatusConflict
	}
	if kind, _ := domain.KindOf(err); kind == domain.KindParse {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *APIHandlers) debt(d domain.Debt) debtResponse {
	return debtResponse{
		ID:          d.ID,
		CreditorID:  d.CreditorID,
		DebtorID:    d.DebtorID,
		Amount:      d.Amount,
		Display:     amount.Format(d.Amount, h.minorDigits),
		Description: d.Description,
		Status:      string(d.Status),
		CreatedAt:   formatTime(d.CreatedAt),
		ConfirmedAt: formatTimePtr(d.ConfirmedAt),
		SettledAt:   formatTimePtr(d.SettledAt),
	}
}

func (h *APIHandlers) payment(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		DebtID:      p.DebtID,
		ProposedBy:  p.ProposedBy,
		Amount:      p.Amount,
		Display:     amount.Format(p.Amount, h.minorDigits),
		Status:      string(p.Status),
		CreatedAt:   formatTime(p.CreatedAt),
		ConfirmedAt: formatTimePtr(p.ConfirmedAt),
		RejectedAt:  formatTimePtr(p.RejectedAt),
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func decodeActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var payload actorRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if payload.ActorID == 0 {
		writeError(w, http.StatusBadRequest, "actor_id is required")
		return 0, false
	}
	return payload.ActorID, true
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}
