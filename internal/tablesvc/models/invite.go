package models

import "time"

type InviteStatus string

const (
	InviteActive    InviteStatus = "active"
	InviteExpired   InviteStatus = "expired"
	InviteExhausted InviteStatus = "exhausted"
)

type Invite struct {
	Token     string     `json:"token"`
	TableID   string     `json:"tableId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"` // nil never expires
	MaxUses   int        `json:"maxUses"`
	UsedCount int        `json:"usedCount"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Status derives the lifecycle state at now. Expiry wins over exhaustion.
func (i Invite) Status(now time.Time) InviteStatus {
	if i.ExpiresAt != nil && !now.Before(*i.ExpiresAt) {
		return InviteExpired
	}
	if i.UsedCount >= i.MaxUses {
		return InviteExhausted
	}
	return InviteActive
}

func (i Invite) RemainingUses() int {
	if i.UsedCount >= i.MaxUses {
		return 0
	}
	return i.MaxUses - i.UsedCount
}

// Resolution is the outcome of looking an invite up without consuming it.
type Resolution struct {
	Status InviteStatus `json:"status"`
	Invite Invite       `json:"invite"`
}

func (r Resolution) Valid() bool { return r.Status == InviteActive }
