package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/invoice"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/product"
	"github.com/stripe/stripe-go/v84/setupintent"
	"github.com/stripe/stripe-go/v84/subscription"
	"github.com/stripe/stripe-go/v84/webhook"
)

// StripeService implements PaymentGateway against the Stripe API.
type StripeService struct {
	secretKey     string
	webhookSecret string
	logger        *slog.Logger
}

var _ PaymentGateway = (*StripeService)(nil)

// NewStripeService creates a new Stripe service
func NewStripeService(secretKey, webhookSecret string) *StripeService {
	stripe.Key = secretKey

	return &StripeService{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		logger:        slog.With("service", "StripeService"),
	}
}

// FindCustomerByEmail returns the first customer matching the email, or nil
// when none exists.
func (s *StripeService) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)

	iter := customer.List(params)
	if iter.Next() {
		cust := iter.Customer()
		s.logger.Info("Found existing Stripe customer", "customer_id", cust.ID, "email", email)
		return &Customer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("Failed to list Stripe customers", "error", err)
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return nil, nil
}

func (s *StripeService) CreateCustomer(ctx context.Context, p CreateCustomerParams) (*Customer, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(p.Email),
		Metadata: p.Metadata,
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	cust, err := customer.New(params)
	if err != nil {
		s.logger.Error("Failed to create Stripe customer", "error", err)
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("Created new Stripe customer", "customer_id", cust.ID, "email", p.Email)
	return &Customer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
}

// CreatePlan mirrors a local plan into Stripe as a product plus a recurring
// price.
func (s *StripeService) CreatePlan(ctx context.Context, p CreatePlanParams) (string, string, error) {
	prod, err := product.New(&stripe.ProductParams{
		Name:        stripe.String(p.Name),
		Description: stripe.String(p.Description),
		Metadata:    p.Metadata,
	})
	if err != nil {
		s.logger.Error("Failed to create Stripe product", "error", err)
		return "", "", fmt.Errorf("failed to create product: %w", err)
	}

	intervalCount := p.IntervalCount
	if intervalCount < 1 {
		intervalCount = 1
	}

	pr, err := price.New(&stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(p.Amount),
		Currency:   stripe.String(p.Currency),
		Nickname:   stripe.String(p.Name),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(p.Interval),
			IntervalCount: stripe.Int64(int64(intervalCount)),
		},
	})
	if err != nil {
		s.logger.Error("Failed to create Stripe price", "error", err, "product_id", prod.ID)
		return "", "", fmt.Errorf("failed to create price: %w", err)
	}

	s.logger.Info("Created Stripe plan", "product_id", prod.ID, "price_id", pr.ID)
	return prod.ID, pr.ID, nil
}

func (s *StripeService) UpdateProduct(ctx context.Context, productID, name, description string) error {
	params := &stripe.ProductParams{}
	if name != "" {
		params.Name = stripe.String(name)
	}
	if description != "" {
		params.Description = stripe.String(description)
	}

	if _, err := product.Update(productID, params); err != nil {
		s.logger.Error("Failed to update Stripe product", "error", err, "product_id", productID)
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (s *StripeService) DeactivatePrice(ctx context.Context, priceID string) error {
	if _, err := price.Update(priceID, &stripe.PriceParams{Active: stripe.Bool(false)}); err != nil {
		s.logger.Error("Failed to deactivate Stripe price", "error", err, "price_id", priceID)
		return fmt.Errorf("failed to deactivate price: %w", err)
	}
	return nil
}

func (s *StripeService) ListPrices(ctx context.Context, limit int) ([]*GatewayPrice, error) {
	params := &stripe.PriceListParams{Active: stripe.Bool(true)}
	params.Limit = stripe.Int64(int64(limit))
	params.AddExpand("data.product")

	var prices []*GatewayPrice
	iter := price.List(params)
	for iter.Next() {
		pr := iter.Price()
		gp := &GatewayPrice{
			ID:         pr.ID,
			Nickname:   pr.Nickname,
			UnitAmount: pr.UnitAmount,
			Currency:   string(pr.Currency),
			Active:     pr.Active,
		}
		if pr.Product != nil {
			gp.ProductID = pr.Product.ID
			gp.ProductName = pr.Product.Name
		}
		if pr.Recurring != nil {
			gp.Interval = string(pr.Recurring.Interval)
			gp.IntervalCount = int(pr.Recurring.IntervalCount)
		}
		prices = append(prices, gp)
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("Failed to list Stripe prices", "error", err)
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}

	return prices, nil
}

// CreateSubscription creates a subscription in incomplete mode: the first
// invoice requires confirmation before the subscription activates.
func (s *StripeService) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*GatewaySubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(p.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		Metadata:        p.Metadata,
	}
	if p.TrialPeriodDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(p.TrialPeriodDays))
	}
	params.AddExpand("latest_invoice.confirmation_secret")

	sub, err := subscription.New(params)
	if err != nil {
		s.logger.Error("Failed to create Stripe subscription", "error", err, "customer_id", p.CustomerID)
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.logger.Info("Created Stripe subscription", "subscription_id", sub.ID, "status", sub.Status)
	return MapSubscription(sub), nil
}

func (s *StripeService) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("latest_invoice")

	sub, err := subscription.Get(id, params)
	if err != nil {
		s.logger.Error("Failed to retrieve Stripe subscription", "error", err, "subscription_id", id)
		return nil, fmt.Errorf("failed to retrieve subscription: %w", err)
	}
	return MapSubscription(sub), nil
}

// CancelSubscription cancels a subscription, either immediately or at the
// period end.
func (s *StripeService) CancelSubscription(ctx context.Context, id string, cancelAtPeriodEnd bool) (*GatewaySubscription, error) {
	var sub *stripe.Subscription
	var err error

	if cancelAtPeriodEnd {
		sub, err = subscription.Update(id, &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		})
	} else {
		sub, err = subscription.Cancel(id, nil)
	}

	if err != nil {
		s.logger.Error("Failed to cancel subscription", "error", err, "subscription_id", id)
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.logger.Info("Canceled subscription", "subscription_id", id, "cancel_at_period_end", cancelAtPeriodEnd)
	return MapSubscription(sub), nil
}

func (s *StripeService) GetInvoice(ctx context.Context, id string) (*GatewayInvoice, error) {
	inv, err := invoice.Get(id, nil)
	if err != nil {
		s.logger.Error("Failed to retrieve Stripe invoice", "error", err, "invoice_id", id)
		return nil, fmt.Errorf("failed to retrieve invoice: %w", err)
	}
	return MapInvoice(inv), nil
}

func (s *StripeService) PayInvoiceOutOfBand(ctx context.Context, id string) (*GatewayInvoice, error) {
	inv, err := invoice.Pay(id, &stripe.InvoicePayParams{
		PaidOutOfBand: stripe.Bool(true),
	})
	if err != nil {
		s.logger.Error("Failed to mark invoice paid out-of-band", "error", err, "invoice_id", id)
		return nil, fmt.Errorf("failed to pay invoice out-of-band: %w", err)
	}

	s.logger.Info("Invoice marked paid out-of-band", "invoice_id", id)
	return MapInvoice(inv), nil
}

func (s *StripeService) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (*GatewayPaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		Metadata: p.Metadata,
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodID)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.Confirm {
		params.Confirm = stripe.Bool(true)
		params.OffSession = stripe.Bool(true)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		s.logger.Error("Failed to create payment intent", "error", err)
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.Info("Created payment intent", "payment_intent_id", pi.ID, "amount", p.Amount, "currency", p.Currency)
	return MapPaymentIntent(pi), nil
}

func (s *StripeService) ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*GatewayPaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}

	pi, err := paymentintent.Confirm(id, params)
	if err != nil {
		s.logger.Error("Failed to confirm payment intent", "error", err, "payment_intent_id", id)
		return nil, fmt.Errorf("failed to confirm payment intent: %w", err)
	}
	return MapPaymentIntent(pi), nil
}

func (s *StripeService) GetPaymentIntent(ctx context.Context, id string) (*GatewayPaymentIntent, error) {
	pi, err := paymentintent.Get(id, nil)
	if err != nil {
		s.logger.Error("Failed to retrieve payment intent", "error", err, "payment_intent_id", id)
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return MapPaymentIntent(pi), nil
}

func (s *StripeService) ListPaymentIntents(ctx context.Context, limit int) ([]*GatewayPaymentIntent, error) {
	params := &stripe.PaymentIntentListParams{}
	params.Limit = stripe.Int64(int64(limit))

	var intents []*GatewayPaymentIntent
	iter := paymentintent.List(params)
	for iter.Next() {
		intents = append(intents, MapPaymentIntent(iter.PaymentIntent()))
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("Failed to list payment intents", "error", err)
		return nil, fmt.Errorf("failed to list payment intents: %w", err)
	}

	return intents, nil
}

func (s *StripeService) GetPaymentMethod(ctx context.Context, id string) (*GatewayPaymentMethod, error) {
	pm, err := paymentmethod.Get(id, nil)
	if err != nil {
		s.logger.Error("Failed to retrieve payment method", "error", err, "payment_method_id", id)
		return nil, fmt.Errorf("failed to retrieve payment method: %w", err)
	}
	return MapPaymentMethod(pm), nil
}

func (s *StripeService) ListPaymentMethods(ctx context.Context, customerID string) ([]*GatewayPaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String("card"),
	}

	var methods []*GatewayPaymentMethod
	iter := paymentmethod.List(params)
	for iter.Next() {
		methods = append(methods, MapPaymentMethod(iter.PaymentMethod()))
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("Failed to list payment methods", "error", err, "customer_id", customerID)
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}

	return methods, nil
}

func (s *StripeService) DetachPaymentMethod(ctx context.Context, id string) error {
	if _, err := paymentmethod.Detach(id, nil); err != nil {
		s.logger.Error("Failed to detach payment method", "error", err, "payment_method_id", id)
		return fmt.Errorf("failed to detach payment method: %w", err)
	}
	return nil
}

func (s *StripeService) CreateSetupIntent(ctx context.Context, customerID string) (*GatewaySetupIntent, error) {
	si, err := setupintent.New(&stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
	})
	if err != nil {
		s.logger.Error("Failed to create setup intent", "error", err, "customer_id", customerID)
		return nil, fmt.Errorf("failed to create setup intent: %w", err)
	}
	return &GatewaySetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}, nil
}

// VerifyWebhook constructs and validates a webhook event
func (s *StripeService) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	options := &webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, *options)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature", "error", err)
		return stripe.Event{}, fmt.Errorf("failed to verify webhook: %w", err)
	}

	s.logger.Debug("Webhook event verified", "type", event.Type, "id", event.ID)
	return event, nil
}

// ParseWebhookData parses webhook data into a target struct
func ParseWebhookData(data *stripe.EventData, target interface{}) error {
	if err := json.Unmarshal(data.Raw, target); err != nil {
		return fmt.Errorf("failed to parse webhook data: %w", err)
	}
	return nil
}

// MapSubscription flattens a Stripe subscription (API response or webhook
// payload) into the gateway view.
func MapSubscription(sub *stripe.Subscription) *GatewaySubscription {
	gs := &GatewaySubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		gs.CustomerID = sub.Customer.ID
	}

	if sub.TrialStart != 0 {
		t := time.Unix(sub.TrialStart, 0)
		gs.TrialStart = &t
	}
	if sub.TrialEnd != 0 {
		t := time.Unix(sub.TrialEnd, 0)
		gs.TrialEnd = &t
	}
	if sub.CanceledAt != 0 {
		t := time.Unix(sub.CanceledAt, 0)
		gs.CanceledAt = &t
	}
	if sub.EndedAt != 0 {
		t := time.Unix(sub.EndedAt, 0)
		gs.EndedAt = &t
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			gs.PriceID = item.Price.ID
			gs.UnitAmount = item.Price.UnitAmount
			gs.Currency = string(item.Price.Currency)
			if item.Price.Product != nil {
				gs.ProductID = item.Price.Product.ID
			}
			if item.Price.Recurring != nil {
				gs.Interval = string(item.Price.Recurring.Interval)
				gs.IntervalCount = int(item.Price.Recurring.IntervalCount)
			}
		}
		gs.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0)
		gs.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
	}

	if sub.LatestInvoice != nil {
		gs.LatestInvoiceID = sub.LatestInvoice.ID
		// Billing window follows the latest invoice when one exists.
		if sub.LatestInvoice.PeriodStart != 0 {
			gs.CurrentPeriodStart = time.Unix(sub.LatestInvoice.PeriodStart, 0)
		}
		if sub.LatestInvoice.PeriodEnd != 0 {
			gs.CurrentPeriodEnd = time.Unix(sub.LatestInvoice.PeriodEnd, 0)
		}
		if sub.LatestInvoice.ConfirmationSecret != nil {
			gs.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
		}
	}

	return gs
}

func MapInvoice(inv *stripe.Invoice) *GatewayInvoice {
	gi := &GatewayInvoice{
		ID:         inv.ID,
		AmountDue:  inv.AmountDue,
		AmountPaid: inv.AmountPaid,
		Currency:   string(inv.Currency),
		Status:     string(inv.Status),
		Paid:       inv.Status == stripe.InvoiceStatusPaid,
	}
	if inv.Customer != nil {
		gi.CustomerID = inv.Customer.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		gi.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return gi
}

func MapPaymentIntent(pi *stripe.PaymentIntent) *GatewayPaymentIntent {
	gp := &GatewayPaymentIntent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
	}
	if pi.Customer != nil {
		gp.CustomerID = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		gp.FailureCode = string(pi.LastPaymentError.Code)
		gp.FailureMessage = pi.LastPaymentError.Msg
	}
	if pi.LatestCharge != nil && pi.LatestCharge.PaymentMethodDetails != nil &&
		pi.LatestCharge.PaymentMethodDetails.Card != nil {
		card := pi.LatestCharge.PaymentMethodDetails.Card
		gp.CardBrand = string(card.Brand)
		gp.CardLast4 = card.Last4
	}
	return gp
}

func MapPaymentMethod(pm *stripe.PaymentMethod) *GatewayPaymentMethod {
	gm := &GatewayPaymentMethod{ID: pm.ID}
	if pm.Customer != nil {
		gm.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		gm.Brand = string(pm.Card.Brand)
		gm.Last4 = pm.Card.Last4
	}
	return gm
}
