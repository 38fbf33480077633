package server

import (
	"context"

	"github.com/vanshika/debtbook/internal/domain"
)

type debtActionFunc func(ctx context.Context, debtID, actor int64) (domain.Debt, error)

type messageRequest struct {
	SenderID int64  `json:"sender_id"`
	Text     string `json:"text"`
}

type actorRequest struct {
	ActorID int64 `json:"actor_id"`
}

type paymentRequest struct {
	ActorID int64 `json:"actor_id"`
	// Amount is an expression evaluated like a message amount, e.g. "300" or "12.50".
	Amount string `json:"amount"`
}

type trustRequest struct {
	TrustedID int64 `json:"trusted_id"`
}

type userRequest struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	LanguageCode    string `json:"language_code"`
	Contact         string `json:"contact"`
	PaydayDays      string `json:"payday_days"`
	ReminderEnabled *bool  `json:"reminder_enabled"`
	Timezone        string `json:"timezone"`
}

func (req userRequest) toDomain() domain.User {
	u := domain.User{
		ID:              req.ID,
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		LanguageCode:    req.LanguageCode,
		Contact:         req.Contact,
		PaydayDays:      domain.ParsePaydayDays(req.PaydayDays),
		ReminderEnabled: true,
		Timezone:        req.Timezone,
	}
	if req.ReminderEnabled != nil {
		u.ReminderEnabled = *req.ReminderEnabled
	}
	return u
}

type userResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username,omitempty"`
	DisplayName     string `json:"display_name"`
	LanguageCode    string `json:"language_code"`
	PaydayDays      string `json:"payday_days,omitempty"`
	ReminderEnabled bool   `json:"reminder_enabled"`
	Timezone        string `json:"timezone,omitempty"`
}

func userFromDomain(u domain.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Username:        u.Username,
		DisplayName:     u.DisplayName(),
		LanguageCode:    u.LanguageCode,
		PaydayDays:      domain.FormatPaydayDays(u.PaydayDays),
		ReminderEnabled: u.ReminderEnabled,
		Timezone:        u.Timezone,
	}
}

type debtResponse struct {
	ID          int64  `json:"id"`
	CreditorID  int64  `json:"creditor_id"`
	DebtorID    int64  `json:"debtor_id"`
	Amount      int64  `json:"amount"`
	Display     string `json:"amount_display"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
	SettledAt   string `json:"settled_at,omitempty"`
}

type paymentResponse struct {
	ID          int64  `json:"id"`
	DebtID      int64  `json:"debt_id"`
	ProposedBy  int64  `json:"proposed_by"`
	Amount      int64  `json:"amount"`
	Display     string `json:"amount_display"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
	RejectedAt  string `json:"rejected_at,omitempty"`
}

type messageResponse struct {
	Debts         []debtResponse `json:"debts"`
	AutoConfirmed []int64        `json:"auto_confirmed,omitempty"`
}

type debtDetailResponse struct {
	Debt      debtResponse      `json:"debt"`
	Confirmed int64             `json:"confirmed"`
	Pending   int64             `json:"pending"`
	Remaining int64             `json:"remaining"`
	Payments  []paymentResponse `json:"payments"`
}

type paymentOutcomeResponse struct {
	Payment paymentResponse `json:"payment"`
	Debt    debtResponse    `json:"debt"`
	Settled bool            `json:"settled"`
}

type balanceRow struct {
	CreditorID int64 `json:"creditor_id"`
	DebtorID   int64 `json:"debtor_id"`
	TotalDebt  int64 `json:"total_debt"`
}

type balancesResponse struct {
	UserID     int64        `json:"user_id"`
	OwedToUser int64        `json:"owed_to_user"`
	OwedByUser int64        `json:"owed_by_user"`
	Net        int64        `json:"net"`
	Display    string       `json:"net_display"`
	Rows       []balanceRow `json:"rows"`
}

type debtListResponse struct {
	Items []debtResponse `json:"items"`
}

type trustListResponse struct {
	Trusted []int64 `json:"trusted"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
