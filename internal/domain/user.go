package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultLanguage is assigned to users registered without a language code.
const DefaultLanguage = "ru"

// User is the ledger's view of an identity owned by the chat transport.
type User struct {
	ID              int64
	Username        string
	FirstName       string
	LastName        string
	LanguageCode    string
	Contact         string
	PaydayDays      []int
	ReminderEnabled bool
	Timezone        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ghost reports whether the user is a placeholder created from an unresolved mention.
func (u User) Ghost() bool {
	return u.ID < 0
}

// DisplayName renders a handle for notifications.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "user " + strconv.FormatInt(u.ID, 10)
	}
	return name
}

// TrustRelation records that Truster accepts debts from Trusted without confirmation.
type TrustRelation struct {
	TrusterID int64
	TrustedID int64
	CreatedAt time.Time
}

// NormalizeUsername lowercases a handle and strips a leading '@'.
func NormalizeUsername(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// ParsePaydayDays decodes the stored "1,15" form. Entries outside 1..31 or not numeric are
// dropped; the result is sorted and deduplicated.
func ParsePaydayDays(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[int]struct{})
	var days []int
	for _, part := range strings.Split(raw, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || day < 1 || day > 31 {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// FormatPaydayDays encodes days into the stored "1,15" form.
func FormatPaydayDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}
