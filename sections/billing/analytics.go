package billing

import (
	"context"
	"time"

	"github.com/MohamedNourTN/clinicback/sections/models"
)

// StatusCount is one row of a status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// PlanCount is one row of a per-plan breakdown.
type PlanCount struct {
	PlanID   uint   `json:"planId"`
	PlanName string `json:"planName"`
	Count    int64  `json:"count"`
}

// TypeTotal aggregates transaction volume per type.
type TypeTotal struct {
	Type        string `json:"type"`
	Count       int64  `json:"count"`
	AmountTotal int64  `json:"amountTotal"`
}

// AnalyticsReport is the operator-facing billing overview.
type AnalyticsReport struct {
	SubscriptionsByStatus []StatusCount `json:"subscriptionsByStatus"`
	SubscriptionsByPlan   []PlanCount   `json:"subscriptionsByPlan"`
	TransactionsByType    []TypeTotal   `json:"transactionsByType"`
	From                  *time.Time    `json:"from,omitempty"`
	To                    *time.Time    `json:"to,omitempty"`
}

// Analytics builds the billing overview, optionally windowed on record
// creation time.
func (s *Store) Analytics(ctx context.Context, from, to *time.Time) (*AnalyticsReport, error) {
	report := &AnalyticsReport{From: from, To: to}

	statusQuery := s.db.WithContext(ctx).Model(&models.TenantSubscription{}).
		Select("status, COUNT(*) AS count").Group("status")
	if from != nil {
		statusQuery = statusQuery.Where("created_at >= ?", *from)
	}
	if to != nil {
		statusQuery = statusQuery.Where("created_at < ?", *to)
	}
	if err := statusQuery.Order("status").Scan(&report.SubscriptionsByStatus).Error; err != nil {
		return nil, err
	}

	planQuery := s.db.WithContext(ctx).Model(&models.TenantSubscription{}).
		Select("tenant_subscriptions.plan_id AS plan_id, subscription_plans.name AS plan_name, COUNT(*) AS count").
		Joins("JOIN subscription_plans ON subscription_plans.id = tenant_subscriptions.plan_id").
		Group("tenant_subscriptions.plan_id, subscription_plans.name")
	if from != nil {
		planQuery = planQuery.Where("tenant_subscriptions.created_at >= ?", *from)
	}
	if to != nil {
		planQuery = planQuery.Where("tenant_subscriptions.created_at < ?", *to)
	}
	if err := planQuery.Order("count DESC").Scan(&report.SubscriptionsByPlan).Error; err != nil {
		return nil, err
	}

	txnQuery := s.db.WithContext(ctx).Model(&models.StripeTransaction{}).
		Select("type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount_total").
		Group("type")
	if from != nil {
		txnQuery = txnQuery.Where("created_at >= ?", *from)
	}
	if to != nil {
		txnQuery = txnQuery.Where("created_at < ?", *to)
	}
	if err := txnQuery.Order("type").Scan(&report.TransactionsByType).Error; err != nil {
		return nil, err
	}

	return report, nil
}
