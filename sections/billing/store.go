package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
)

// Store wraps all billing persistence. Pre-write existence checks live in
// the engine; the store surfaces duplicate-key violations as Conflict so
// racing writers still cannot break the uniqueness invariants.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetTenant(ctx context.Context, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("tenant %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Plans

func (s *Store) GetPlan(ctx context.Context, id uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.db.WithContext(ctx).First(&plan, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("plan %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetPlanByPriceID returns nil (no error) when no plan references the price.
func (s *Store) GetPlanByPriceID(ctx context.Context, priceID string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Store) ListPlans(ctx context.Context, includeInactive bool) ([]models.SubscriptionPlan, error) {
	q := s.db.WithContext(ctx).Order("price ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var plans []models.SubscriptionPlan
	if err := q.Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// CreatePlan persists a plan. When the plan is flagged default, the default
// flag is cleared on all other plans in the same transaction so the
// at-most-one-default invariant holds without a separate clearing pass.
func (s *Store) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if plan.IsDefault {
			if err := tx.Model(&models.SubscriptionPlan{}).
				Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(plan).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.ConflictError("plan with price %s already exists", plan.StripePriceID)
			}
			return err
		}
		return nil
	})
}

func (s *Store) SavePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	return s.db.WithContext(ctx).Save(plan).Error
}

// SetDefaultPlan makes the given plan the single default in one transaction.
func (s *Store) SetDefaultPlan(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.SubscriptionPlan
		if err := tx.First(&plan, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NotFoundError("plan %d not found", id)
			}
			return err
		}
		if err := tx.Model(&models.SubscriptionPlan{}).
			Where("id <> ? AND is_default = ?", id, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&plan).Update("is_default", true).Error
	})
}

// CountActiveLikeByPlan counts tenants currently holding a live subscription
// on the plan. Used to block archival of plans still in use.
func (s *Store) CountActiveLikeByPlan(ctx context.Context, planID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TenantSubscription{}).
		Where("plan_id = ? AND status IN ?", planID, ActiveLikeStatuses).
		Count(&count).Error
	return count, err
}

// Subscriptions

func (s *Store) HasActiveLikeSubscription(ctx context.Context, tenantID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TenantSubscription{}).
		Where("tenant_id = ? AND status IN ?", tenantID, ActiveLikeStatuses).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateSubscription(ctx context.Context, sub *models.TenantSubscription) error {
	err := s.db.WithContext(ctx).Create(sub).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.ConflictError("tenant %d already holds a live subscription", sub.TenantID)
	}
	return err
}

func (s *Store) GetSubscription(ctx context.Context, id uint) (*models.TenantSubscription, error) {
	var sub models.TenantSubscription
	err := s.db.WithContext(ctx).First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFoundError("subscription %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscriptionByGatewayID returns nil (no error) when no record matches:
// webhook events may reference subscriptions this system did not originate.
func (s *Store) GetSubscriptionByGatewayID(ctx context.Context, gatewayID string) (*models.TenantSubscription, error) {
	var sub models.TenantSubscription
	err := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", gatewayID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LatestSubscriptionForTenant returns the most recent record by creation
// time with id as an explicit tie-break.
func (s *Store) LatestSubscriptionForTenant(ctx context.Context, tenantID uint) (*models.TenantSubscription, error) {
	var sub models.TenantSubscription
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) UpdateSubscriptionByGatewayID(ctx context.Context, gatewayID string, updates map[string]interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.TenantSubscription{}).
		Where("stripe_subscription_id = ?", gatewayID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// SubscriptionFilter narrows subscription listings.
type SubscriptionFilter struct {
	TenantID uint
	Status   string
	PlanID   uint
}

func (s *Store) ListSubscriptions(ctx context.Context, filter SubscriptionFilter, page common.PageRequest) ([]models.TenantSubscription, int64, error) {
	page.Normalize()

	q := s.db.WithContext(ctx).Model(&models.TenantSubscription{})
	if filter.TenantID != 0 {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PlanID != 0 {
		q = q.Where("plan_id = ?", filter.PlanID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subs []models.TenantSubscription
	err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&subs).Error
	return subs, total, err
}

// Transactions

func (s *Store) CreateTransaction(ctx context.Context, txn *models.StripeTransaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Create(txn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.ConflictError("transaction for payment intent already exists")
	}
	return err
}

// GetTransactionByPaymentIntentID returns nil (no error) when absent.
func (s *Store) GetTransactionByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.StripeTransaction, error) {
	var txn models.StripeTransaction
	err := s.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", paymentIntentID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *Store) SaveTransaction(ctx context.Context, txn *models.StripeTransaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(txn).Error
}

// TransactionFilter narrows transaction listings. Email filtering from the
// legacy surface is keyed on the gateway customer id instead, since email is
// not denormalized onto ledger rows.
type TransactionFilter struct {
	TenantID   uint
	Status     string
	Type       string
	CustomerID string
	From       *time.Time
	To         *time.Time
}

func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter, page common.PageRequest) ([]models.StripeTransaction, int64, error) {
	page.Normalize()

	q := s.db.WithContext(ctx).Model(&models.StripeTransaction{})
	if filter.TenantID != 0 {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.CustomerID != "" {
		q = q.Where("stripe_customer_id = ?", filter.CustomerID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.StripeTransaction
	err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&txns).Error
	return txns, total, err
}

// Webhook events

// RecordWebhookEvent inserts the event's dedup row. It reports created=false
// when the same (provider, event id) pair was already recorded, which is how
// redelivered events are detected.
func (s *Store) RecordWebhookEvent(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	err := s.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) MarkWebhookEventProcessed(ctx context.Context, id uint, procErr error) error {
	updates := map[string]interface{}{"processed_at": time.Now()}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	}
	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}
