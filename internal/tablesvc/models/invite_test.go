package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInviteStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		invite Invite
		want   InviteStatus
	}{
		{"no expiry unused", Invite{MaxUses: 3}, InviteActive},
		{"future expiry with uses left", Invite{ExpiresAt: &future, MaxUses: 3, UsedCount: 2}, InviteActive},
		{"expired and unused", Invite{ExpiresAt: &past, MaxUses: 3}, InviteExpired},
		{"expires exactly now", Invite{ExpiresAt: &now, MaxUses: 3}, InviteExpired},
		{"expired and exhausted reports expired", Invite{ExpiresAt: &past, MaxUses: 1, UsedCount: 1}, InviteExpired},
		{"exhausted without expiry", Invite{MaxUses: 1, UsedCount: 1}, InviteExhausted},
		{"over used", Invite{ExpiresAt: &future, MaxUses: 2, UsedCount: 5}, InviteExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.invite.Status(now))
		})
	}
}

func TestRemainingUses(t *testing.T) {
	assert.Equal(t, 2, Invite{MaxUses: 3, UsedCount: 1}.RemainingUses())
	assert.Equal(t, 0, Invite{MaxUses: 3, UsedCount: 7}.RemainingUses())
}
