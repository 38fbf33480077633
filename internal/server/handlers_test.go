package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/identity"
	"github.com/vanshika/debtbook/internal/ledger"
	"github.com/vanshika/debtbook/internal/logging"
	"github.com/vanshika/debtbook/internal/notify"
	"github.com/vanshika/debtbook/internal/parser"
	"github.com/vanshika/debtbook/internal/service"
	"github.com/vanshika/debtbook/internal/store/memory"
)

type apiFixture struct {
	store   *memory.Store
	handler http.Handler
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	logger := logging.Discard()
	store := memory.New()
	dir := identity.NewDirectory(store, logger)
	l := ledger.New(store, logger)
	svc := service.NewDebtService(l, dir, store, notify.Discard, service.Options{Parser: parser.DefaultOptions()}, logger)

	handler := NewRouter(logger, RouterDependencies{
		Health: Checks{"ledger": l},
		API:    NewAPIHandlers(logger, svc, 2),
	})
	f := apiFixture{store: store, handler: handler}

	f.do(t, http.MethodPost, "/users", map[string]any{"id": 1, "username": "alice"}, http.StatusCreated, nil)
	f.do(t, http.MethodPost, "/users", map[string]any{"id": 2, "username": "bob", "payday_days": "1,15"}, http.StatusCreated, nil)
	return f
}

func (f apiFixture) do(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, wantStatus, rec.Code, "body: %s", rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func TestDebtLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	var msg messageResponse
	f.do(t, http.MethodPost, "/messages", messageRequest{SenderID: 1, Text: "@bob 900 dinner"}, http.StatusCreated, &msg)
	require.Len(t, msg.Debts, 1)
	debt := msg.Debts[0]
	assert.Equal(t, int64(900), debt.Amount)
	assert.Equal(t, "9.00", debt.Display)
	assert.Equal(t, "pending", debt.Status)

	var errResp errorResponse
	f.do(t, http.MethodPost, fmt.Sprintf("/debts/%d/confirm", debt.ID), actorRequest{ActorID: 1}, http.StatusForbidden, &errResp)
	assert.Equal(t, string(domain.CodeUnauthorized), errResp.Code)

	var confirmed debtResponse
	f.do(t, http.MethodPost, fmt.Sprintf("/debts/%d/confirm", debt.ID), actorRequest{ActorID: 2}, http.StatusOK, &confirmed)
	assert.Equal(t, "active", confirmed.Status)
	assert.NotEmpty(t, confirmed.ConfirmedAt)

	f.do(t, http.MethodPost, fmt.Sprintf("/debts/%d/reject", debt.ID), actorRequest{ActorID: 2}, http.StatusConflict, nil)

	var payment paymentResponse
	f.do(t, http.MethodPost, fmt.Sprintf("/debts/%d/payments", debt.ID), paymentRequest{ActorID: 2, Amount: "900"}, http.StatusCreated, &payment)
	assert.Equal(t, "pending_confirmation", payment.Status)

	f.do(t, http.MethodPost, fmt.Sprintf("/debts/%d/payments", debt.ID), paymentRequest{ActorID: 2, Amount: "1"}, http.StatusConflict, &errResp)
	assert.Equal(t, string(domain.CodeExceedsBalance), errResp.Code)

	var outcome paymentOutcomeResponse
	f.do(t, http.MethodPost, fmt.Sprintf("/payments/%d/confirm", payment.ID), actorRequest{ActorID: 1}, http.StatusOK, &outcome)
	assert.True(t, outcome.Settled)
	assert.Equal(t, "paid", outcome.Debt.Status)

	var detail debtDetailResponse
	f.do(t, http.MethodGet, fmt.Sprintf("/debts/%d", debt.ID), nil, http.StatusOK, &detail)
	assert.Equal(t, int64(900), detail.Confirmed)
	assert.Equal(t, int64(0), detail.Remaining)
	assert.Len(t, detail.Payments, 1)
}

func TestSubmitMessageParseErrors(t *testing.T) {
	f := newAPIFixture(t)

	var errResp errorResponse
	f.do(t, http.MethodPost, "/messages", messageRequest{SenderID: 1, Text: "@bob 10/0"}, http.StatusUnprocessableEntity, &errResp)
	assert.Equal(t, string(domain.CodeDivisionByZero), errResp.Code)

	f.do(t, http.MethodPost, "/messages", messageRequest{SenderID: 1, Text: "@nobody 10"}, http.StatusUnprocessableEntity, &errResp)
	assert.Equal(t, string(domain.CodeUnknownUser), errResp.Code)

	f.do(t, http.MethodPost, "/messages", messageRequest{SenderID: 1}, http.StatusBadRequest, nil)
	f.do(t, http.MethodPost, "/messages", map[string]any{"sender": 1}, http.StatusBadRequest, nil)
}

func TestBalancesAndListing(t *testing.T) {
	f := newAPIFixture(t)

	var msg messageResponse
	f.do(t, http.MethodPost, "/messages", messageRequest{SenderID: 1, Text: "@bob 1250 taxi"}, http.StatusCreated, &msg)
	f.do(t, http.MethodPost, fmt.Sprintf("/debts/%d/confirm", msg.Debts[0].ID), actorRequest{ActorID: 2}, http.StatusOK, nil)

	var bal balancesResponse
	f.do(t, http.MethodGet, "/users/2/balances", nil, http.StatusOK, &bal)
	assert.Equal(t, int64(1250), bal.OwedByUser)
	assert.Equal(t, int64(-1250), bal.Net)
	assert.Equal(t, "-12.50", bal.Display)

	var list debtListResponse
	f.do(t, http.MethodGet, "/users/1/debts?role=creditor&status=active", nil, http.StatusOK, &list)
	assert.Len(t, list.Items, 1)
	f.do(t, http.MethodGet, "/users/1/debts?role=debtor", nil, http.StatusOK, &list)
	assert.Empty(t, list.Items)

	f.do(t, http.MethodGet, "/users/1/debts?role=witness", nil, http.StatusBadRequest, nil)
	f.do(t, http.MethodGet, "/users/1/debts?status=settled", nil, http.StatusBadRequest, nil)
	f.do(t, http.MethodGet, "/users/abc/balances", nil, http.StatusBadRequest, nil)
	f.do(t, http.MethodGet, "/debts/999", nil, http.StatusNotFound, nil)
}

func TestTrustRoutes(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodPost, "/users/2/trust", trustRequest{TrustedID: 1}, http.StatusCreated, nil)
	f.do(t, http.MethodPost, "/users/2/trust", trustRequest{TrustedID: 77}, http.StatusNotFound, nil)

	var list trustListResponse
	f.do(t, http.MethodGet, "/users/2/trust", nil, http.StatusOK, &list)
	assert.Equal(t, []int64{1}, list.Trusted)

	f.do(t, http.MethodDelete, "/users/2/trust/1", nil, http.StatusOK, nil)
	f.do(t, http.MethodGet, "/users/2/trust", nil, http.StatusOK, &list)
	assert.Empty(t, list.Trusted)
}

func TestRegisterUserValidation(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodPost, "/users", map[string]any{"id": 3, "username": "x"}, http.StatusBadRequest, nil)

	var u userResponse
	f.do(t, http.MethodPost, "/users", map[string]any{"id": 3, "username": "Carol", "reminder_enabled": false}, http.StatusCreated, &u)
	assert.Equal(t, "carol", u.Username)
	assert.False(t, u.ReminderEnabled)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodGet, "/healthz", nil, http.StatusOK, nil)

	f.store.SetUnavailable(errors.New("connection refused"))
	var payload map[string]any
	f.do(t, http.MethodGet, "/healthz", nil, http.StatusServiceUnavailable, &payload)
	assert.Equal(t, "degraded", payload["status"])
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNoAmountFound, http.StatusUnprocessableEntity},
		{domain.ErrSelfDebt, http.StatusUnprocessableEntity},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrAlreadyTerminal, http.StatusConflict},
		{domain.ErrConcurrentModification, http.StatusConflict},
		{fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.Wrap(domain.CodeUnavailable, errors.New("eof"), "ping"), http.StatusServiceUnavailable},
		{fmt.Errorf("register: %w", identity.ErrInvalidUser), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "%v", tc.err)
	}
}
