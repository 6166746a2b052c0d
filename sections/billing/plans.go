package billing

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/sections/models"
	"github.com/MohamedNourTN/clinicback/services"
)

// PlanService manages the plan catalog and mirrors it to the payment
// gateway. Prices are immutable gateway-side, so price changes mean a new
// plan; only name and description propagate on update.
type PlanService struct {
	logger  *slog.Logger
	store   *Store
	gateway services.PaymentGateway
}

func NewPlanService(store *Store, gateway services.PaymentGateway) *PlanService {
	return &PlanService{
		logger:  slog.With("service", "PlanService"),
		store:   store,
		gateway: gateway,
	}
}

// CreatePlanInput carries the catalog parameters for a new plan.
type CreatePlanInput struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	PriceCents      int64    `json:"priceCents" binding:"required"`
	Currency        string   `json:"currency"`
	Interval        string   `json:"interval" binding:"required,oneof=day week month year"`
	IntervalCount   int      `json:"intervalCount"`
	TrialPeriodDays int      `json:"trialPeriodDays"`
	MaxClinics      int      `json:"maxClinics"`
	MaxUsers        int      `json:"maxUsers"`
	MaxPatients     int      `json:"maxPatients"`
	Features        []string `json:"features"`
	IsDefault       bool     `json:"isDefault"`
}

// CreatePlan creates the gateway product+price pair and the local plan in
// one operation.
func (s *PlanService) CreatePlan(ctx context.Context, in CreatePlanInput, defaultCurrency string) (*models.SubscriptionPlan, error) {
	if in.PriceCents < 0 {
		return nil, common.ValidationError("price must not be negative")
	}
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	intervalCount := in.IntervalCount
	if intervalCount <= 0 {
		intervalCount = 1
	}

	productID, priceID, err := s.gateway.CreatePlan(ctx, services.CreatePlanParams{
		Name:            in.Name,
		Description:     in.Description,
		Amount:          in.PriceCents,
		Currency:        currency,
		Interval:        in.Interval,
		IntervalCount:   intervalCount,
		TrialPeriodDays: in.TrialPeriodDays,
	})
	if err != nil {
		return nil, common.UpstreamError(err, "failed to create gateway plan")
	}

	plan := &models.SubscriptionPlan{
		Name:            in.Name,
		Description:     in.Description,
		StripeProductID: productID,
		StripePriceID:   priceID,
		Price:           in.PriceCents,
		Currency:        currency,
		Interval:        in.Interval,
		IntervalCount:   intervalCount,
		TrialPeriodDays: in.TrialPeriodDays,
		MaxClinics:      in.MaxClinics,
		MaxUsers:        in.MaxUsers,
		MaxPatients:     in.MaxPatients,
		Features:        EncodeFeatures(in.Features),
		IsActive:        true,
		IsDefault:       in.IsDefault,
	}
	if err := s.store.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Plan created", "plan_id", plan.ID, "price_id", priceID)
	return plan, nil
}

// UpdatePlanInput updates descriptive fields and entitlement limits. Nil
// pointers leave the field untouched.
type UpdatePlanInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	MaxClinics  *int      `json:"maxClinics"`
	MaxUsers    *int      `json:"maxUsers"`
	MaxPatients *int      `json:"maxPatients"`
	Features    *[]string `json:"features"`
}

// UpdatePlan applies catalog updates and pushes name/description changes
// to the gateway product.
func (s *PlanService) UpdatePlan(ctx context.Context, id uint, in UpdatePlanInput) (*models.SubscriptionPlan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		plan.Name = *in.Name
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.MaxClinics != nil {
		plan.MaxClinics = *in.MaxClinics
	}
	if in.MaxUsers != nil {
		plan.MaxUsers = *in.MaxUsers
	}
	if in.MaxPatients != nil {
		plan.MaxPatients = *in.MaxPatients
	}
	if in.Features != nil {
		plan.Features = EncodeFeatures(*in.Features)
	}

	if (in.Name != nil || in.Description != nil) && plan.StripeProductID != "" {
		if err := s.gateway.UpdateProduct(ctx, plan.StripeProductID, plan.Name, plan.Description); err != nil {
			return nil, common.UpstreamError(err, "failed to update gateway product")
		}
	}

	if err := s.store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// SetDefault marks one plan as the default, clearing the flag everywhere
// else in the same transaction.
func (s *PlanService) SetDefault(ctx context.Context, id uint) (*models.SubscriptionPlan, error) {
	if err := s.store.SetDefaultPlan(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetPlan(ctx, id)
}

// ArchivePlan retires a plan from sale. Plans with live subscriptions
// cannot be archived; existing terminal history is unaffected.
func (s *PlanService) ArchivePlan(ctx context.Context, id uint) error {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if !plan.IsActive {
		return nil
	}

	count, err := s.store.CountActiveLikeByPlan(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return common.ConflictError("plan %q has %d live subscriptions", plan.Name, count)
	}

	if plan.StripePriceID != "" {
		if err := s.gateway.DeactivatePrice(ctx, plan.StripePriceID); err != nil {
			return common.UpstreamError(err, "failed to deactivate gateway price")
		}
	}

	plan.IsActive = false
	plan.IsDefault = false
	if err := s.store.SavePlan(ctx, plan); err != nil {
		return err
	}

	s.logger.Info("Plan archived", "plan_id", id)
	return nil
}

// EncodeFeatures serializes capability tokens for storage.
func EncodeFeatures(features []string) string {
	if len(features) == 0 {
		return "[]"
	}
	b, err := json.Marshal(features)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeFeatures parses stored capability tokens; malformed data yields an
// empty list.
func DecodeFeatures(raw string) []string {
	if raw == "" {
		return nil
	}
	var features []string
	if err := json.Unmarshal([]byte(raw), &features); err != nil {
		return nil
	}
	return features
}
