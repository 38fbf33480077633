// Package generator synthesises chat users and debt messages for demos and load tests.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/domain"
)

// Message is one chat message as the transport adapter would submit it.
type Message struct {
	SenderID int64  `json:"sender_id"`
	Text     string `json:"text"`
}

// Dataset contains the generated users and messages.
type Dataset struct {
	Users    []domain.User `json:"users"`
	Messages []Message     `json:"messages"`
}

// Generator produces synthetic messages that the parser accepts under the default policy.
type Generator struct {
	cfg           Config
	rand          *rand.Rand
	nameFragments nameFragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumUsers < 2 {
		cfg.NumUsers = def.NumUsers
	}
	if cfg.NumMessages <= 0 {
		cfg.NumMessages = def.NumMessages
	}
	if cfg.MinorDigits < 0 {
		cfg.MinorDigits = def.MinorDigits
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:           cfg,
		rand:          rand.New(rand.NewSource(cfg.Seed)),
		nameFragments: defaultNameFragments(),
	}
}

// Generate synthesises users and messages. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	users := make([]domain.User, g.cfg.NumUsers)
	for i := range users {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		users[i] = g.randomUser(int64(i + 1))
	}

	messages := make([]Message, g.cfg.NumMessages)
	for i := range messages {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		sender := users[g.rand.Intn(len(users))]
		lines := []string{g.randomLine(users, sender.ID)}
		if g.rand.Float64() < g.cfg.MultiLineChance {
			lines = append(lines, g.randomLine(users, sender.ID))
		}
		messages[i] = Message{SenderID: sender.ID, Text: strings.Join(lines, "\n")}
	}

	return Dataset{Users: users, Messages: messages}, nil
}

func (g *Generator) randomUser(id int64) domain.User {
	first := g.nameFragments.first[g.rand.Intn(len(g.nameFragments.first))]
	last := g.nameFragments.last[g.rand.Intn(len(g.nameFragments.last))]

	u := domain.User{
		ID:              id,
		Username:        strings.ToLower(fmt.Sprintf("%s_%s_%d", first, last, id)),
		FirstName:       first,
		LastName:        last,
		LanguageCode:    g.nameFragments.languages[g.rand.Intn(len(g.nameFragments.languages))],
		ReminderEnabled: g.rand.Float64() < 0.9,
		Timezone:        g.nameFragments.timezones[g.rand.Intn(len(g.nameFragments.timezones))],
	}
	if g.rand.Float64() < g.cfg.PaydayChance {
		u.PaydayDays = g.randomPaydays()
	}
	return u
}

func (g *Generator) randomPaydays() []int {
	options := [][]int{{1, 15}, {5, 20}, {10, 25}, {25}, {31}}
	return options[g.rand.Intn(len(options))]
}

// randomLine writes "@a [@b ...] <amount> [description]" with distinct debtors other than the
// sender. Amounts always divide evenly so the reject rounding policy accepts them.
func (g *Generator) randomLine(users []domain.User, sender int64) string {
	debtors := 1
	if g.rand.Float64() < g.cfg.SplitChance {
		debtors = 2 + g.rand.Intn(3)
	}
	if limit := len(users) - 1; debtors > limit {
		debtors = limit
	}

	var b strings.Builder
	for _, u := range g.pickDebtors(users, sender, debtors) {
		b.WriteString("@")
		b.WriteString(u.Username)
		b.WriteString(" ")
	}

	share := int64(100 * (1 + g.rand.Intn(500)))
	switch {
	case debtors > 1 && g.rand.Float64() < g.cfg.DivisorChance:
		// The divisor counts the sender too; the result is each debtor's share.
		parts := int64(debtors + 1)
		fmt.Fprintf(&b, "%d/%d", share*parts, parts)
	default:
		b.WriteString(g.formatAmount(share * int64(debtors)))
	}

	if note := g.nameFragments.notes[g.rand.Intn(len(g.nameFragments.notes))]; note != "" {
		b.WriteString(" ")
		b.WriteString(note)
	}
	return b.String()
}

func (g *Generator) pickDebtors(users []domain.User, sender int64, n int) []domain.User {
	picked := make([]domain.User, 0, n)
	seen := map[int64]struct{}{sender: {}}
	for len(picked) < n {
		u := users[g.rand.Intn(len(users))]
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		picked = append(picked, u)
	}
	return picked
}

func (g *Generator) formatAmount(minor int64) string {
	if g.cfg.MinorDigits > 0 && g.rand.Float64() < g.cfg.DecimalChance {
		return amount.Format(minor, g.cfg.MinorDigits)
	}
	return fmt.Sprintf("%d", minor)
}

type nameFragments struct {
	first     []string
	last      []string
	languages []string
	timezones []string
	notes     []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:     []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara"},
		last:      []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee"},
		languages: []string{"ru", "en"},
		timezones: []string{"", "UTC", "Europe/Moscow", "Europe/Berlin", "Asia/Tokyo", "America/New_York"},
		notes:     []string{"", "dinner", "taxi", "groceries", "coffee", "concert tickets", "rent share", "pizza night"},
	}
}
