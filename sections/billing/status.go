package billing

// SubscriptionStatus is the closed set of subscription lifecycle states
// reported by the gateway.
type SubscriptionStatus string

const (
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusUnpaid            SubscriptionStatus = "unpaid"
)

// ActiveLikeStatuses are the states in which a tenant counts as holding a
// live subscription. At most one record per tenant may be in one of these.
var ActiveLikeStatuses = []string{
	string(StatusActive),
	string(StatusTrialing),
	string(StatusPastDue),
}

// Valid reports whether s is a recognized lifecycle state.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusIncomplete, StatusIncompleteExpired, StatusTrialing,
		StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid:
		return true
	}
	return false
}

// ActiveLike reports whether s counts as a live subscription.
func (s SubscriptionStatus) ActiveLike() bool {
	return s == StatusActive || s == StatusTrialing || s == StatusPastDue
}

// Terminal reports whether s admits no further transitions.
func (s SubscriptionStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusIncompleteExpired
}

// allowedTransitions is the transition table for gateway-reported status
// changes. Self-transitions are always permitted.
var allowedTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusIncomplete: {StatusActive, StatusTrialing, StatusIncompleteExpired, StatusCanceled},
	StatusTrialing:   {StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid},
	StatusActive:     {StatusPastDue, StatusCanceled, StatusUnpaid},
	StatusPastDue:    {StatusActive, StatusCanceled, StatusUnpaid},
	StatusUnpaid:     {StatusActive, StatusCanceled},
}

// CanTransition reports whether moving from one status to another is an
// expected lifecycle change. Unknown statuses never transition.
func CanTransition(from, to SubscriptionStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
