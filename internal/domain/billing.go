package domain

import "time"

// Subscription is the starter billing record attached to a new organization.
type Subscription struct {
	ID             int64
	OrganizationID int64
	PlanID         string
	Status         string
	Currency       string
	Price          int64
	Period         string
	TrialStart     time.Time
	TrialEnd       time.Time
	StartDate      time.Time
	EndDate        time.Time
	CreatedAt      time.Time
}

// SubscriptionUsage tracks the credits counter for a subscription.
type SubscriptionUsage struct {
	ID             int64
	SubscriptionID int64
	Credits        int64
	ResetDate      time.Time
}
