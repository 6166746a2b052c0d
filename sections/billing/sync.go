package billing

import (
	"context"
	"fmt"

	"github.com/MohamedNourTN/clinicback/sections/models"
)

// SyncReport summarizes a bulk import run. Per-item failures are collected
// rather than aborting the run.
type SyncReport struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *SyncReport) fail(format string, args ...any) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// SyncPlans imports gateway prices that have no local plan yet. Imported
// plans arrive inactive and non-default so an operator reviews limits and
// features before exposure.
func (e *Engine) SyncPlans(ctx context.Context, pageSize int) (*SyncReport, error) {
	prices, err := e.gateway.ListPrices(ctx, pageSize)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for _, price := range prices {
		existing, err := e.store.GetPlanByPriceID(ctx, price.ID)
		if err == nil && existing != nil {
			report.Skipped++
			continue
		}

		name := price.ProductName
		if name == "" {
			name = price.Nickname
		}
		if name == "" {
			name = price.ID
		}

		plan := &models.SubscriptionPlan{
			Name:            name,
			StripeProductID: price.ProductID,
			StripePriceID:   price.ID,
			Price:           price.UnitAmount,
			Currency:        price.Currency,
			Interval:        price.Interval,
			IntervalCount:   price.IntervalCount,
			IsActive:        false,
			IsDefault:       false,
		}
		if err := e.store.CreatePlan(ctx, plan); err != nil {
			report.fail("price %s: %v", price.ID, err)
			e.logger.Warn("Failed to import gateway price", "price_id", price.ID, "error", err)
			continue
		}
		report.Created++
	}

	e.logger.Info("Plan sync finished", "created", report.Created,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// SyncTransactions backfills transactions from the gateway's payment
// intent history, skipping intents already recorded locally.
func (e *Engine) SyncTransactions(ctx context.Context, pageSize int) (*SyncReport, error) {
	intents, err := e.gateway.ListPaymentIntents(ctx, pageSize)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for _, pi := range intents {
		existing, err := e.store.GetTransactionByPaymentIntentID(ctx, pi.ID)
		if err == nil && existing != nil {
			report.Skipped++
			continue
		}

		piID := pi.ID
		txn := &models.StripeTransaction{
			StripePaymentIntentID: &piID,
			StripeCustomerID:      pi.CustomerID,
			Amount:                pi.Amount,
			Currency:              pi.Currency,
			Status:                pi.Status,
			Type:                  models.TransactionTypeOneTime,
			FailureCode:           pi.FailureCode,
			FailureMessage:        pi.FailureMessage,
			CardBrand:             pi.CardBrand,
			CardLast4:             pi.CardLast4,
		}
		if err := e.store.CreateTransaction(ctx, txn); err != nil {
			report.fail("payment intent %s: %v", pi.ID, err)
			e.logger.Warn("Failed to import payment intent", "payment_intent_id", pi.ID, "error", err)
			continue
		}
		report.Created++
	}

	e.logger.Info("Transaction sync finished", "created", report.Created,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
