package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatusValid(t *testing.T) {
	for _, s := range []SubscriptionStatus{
		StatusIncomplete, StatusIncompleteExpired, StatusTrialing,
		StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid,
	} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}
	assert.False(t, SubscriptionStatus("paused").Valid())
	assert.False(t, SubscriptionStatus("").Valid())
}

func TestSubscriptionStatusActiveLike(t *testing.T) {
	assert.True(t, StatusActive.ActiveLike())
	assert.True(t, StatusTrialing.ActiveLike())
	assert.True(t, StatusPastDue.ActiveLike())

	assert.False(t, StatusIncomplete.ActiveLike())
	assert.False(t, StatusCanceled.ActiveLike())
	assert.False(t, StatusUnpaid.ActiveLike())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SubscriptionStatus
		want     bool
	}{
		{StatusIncomplete, StatusActive, true},
		{StatusIncomplete, StatusTrialing, true},
		{StatusIncomplete, StatusIncompleteExpired, true},
		{StatusIncomplete, StatusPastDue, false},
		{StatusTrialing, StatusActive, true},
		{StatusTrialing, StatusUnpaid, true},
		{StatusActive, StatusPastDue, true},
		{StatusActive, StatusTrialing, false},
		{StatusPastDue, StatusActive, true},
		{StatusUnpaid, StatusActive, true},
		{StatusUnpaid, StatusTrialing, false},
		{StatusCanceled, StatusActive, false},
		{StatusIncompleteExpired, StatusActive, false},
		// Self-transitions are always allowed.
		{StatusActive, StatusActive, true},
		{StatusCanceled, StatusCanceled, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.False(t, CanTransition(SubscriptionStatus("paused"), StatusActive))
	assert.False(t, CanTransition(StatusActive, SubscriptionStatus("paused")))
}
