package services

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// Customer is the gateway-side billing profile for a tenant or admin.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// GatewaySubscription is the gateway's view of a subscription, flattened to
// the fields the reconciliation engine persists.
type GatewaySubscription struct {
	ID         string
	CustomerID string
	Status     string

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	EndedAt            *time.Time

	PriceID       string
	ProductID     string
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int

	LatestInvoiceID string
	// ClientSecret confirms the first invoice's payment client-side; only
	// populated on creation in incomplete mode.
	ClientSecret string
}

// GatewayInvoice is the gateway's view of an invoice.
type GatewayInvoice struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	AmountDue      int64
	AmountPaid     int64
	Currency       string
	Status         string
	Paid           bool
}

// GatewayPaymentIntent is the gateway's view of a payment intent.
type GatewayPaymentIntent struct {
	ID             string
	CustomerID     string
	Amount         int64
	Currency       string
	Status         string
	ClientSecret   string
	FailureCode    string
	FailureMessage string
	CardBrand      string
	CardLast4      string
}

// GatewayPaymentMethod is a stored payment instrument.
type GatewayPaymentMethod struct {
	ID         string
	CustomerID string
	Brand      string
	Last4      string
}

// GatewayPrice is one price (with its product) as listed by the gateway.
type GatewayPrice struct {
	ID            string
	ProductID     string
	ProductName   string
	Nickname      string
	UnitAmount    int64
	Currency      string
	Interval      string
	IntervalCount int
	Active        bool
}

// GatewaySetupIntent collects a payment method for future delegated use.
type GatewaySetupIntent struct {
	ID           string
	ClientSecret string
}

type CreateCustomerParams struct {
	Email string
	Name  string
	// IdempotencyKey collapses concurrent creates for the same logical
	// customer into one gateway record.
	IdempotencyKey string
	Metadata       map[string]string
}

type CreatePlanParams struct {
	Name            string
	Description     string
	Amount          int64
	Currency        string
	Interval        string
	IntervalCount   int
	TrialPeriodDays int
	Metadata        map[string]string
}

type CreateSubscriptionParams struct {
	CustomerID      string
	PriceID         string
	TrialPeriodDays int
	Metadata        map[string]string
}

type CreatePaymentIntentParams struct {
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	Confirm         bool
	Description     string
	Metadata        map[string]string
}

// PaymentGateway is the payment processor contract consumed by the
// reconciliation engine and the plan service. Implementations wrap the
// processor SDK; tests substitute a mock.
type PaymentGateway interface {
	// FindCustomerByEmail returns nil (no error) when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	CreatePlan(ctx context.Context, params CreatePlanParams) (productID, priceID string, err error)
	UpdateProduct(ctx context.Context, productID, name, description string) error
	DeactivatePrice(ctx context.Context, priceID string) error
	ListPrices(ctx context.Context, limit int) ([]*GatewayPrice, error)

	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*GatewaySubscription, error)
	GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, id string, cancelAtPeriodEnd bool) (*GatewaySubscription, error)

	GetInvoice(ctx context.Context, id string) (*GatewayInvoice, error)
	// PayInvoiceOutOfBand marks an invoice paid without processing a new
	// charge against it.
	PayInvoiceOutOfBand(ctx context.Context, id string) (*GatewayInvoice, error)

	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*GatewayPaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*GatewayPaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*GatewayPaymentIntent, error)
	ListPaymentIntents(ctx context.Context, limit int) ([]*GatewayPaymentIntent, error)

	GetPaymentMethod(ctx context.Context, id string) (*GatewayPaymentMethod, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]*GatewayPaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, id string) error

	CreateSetupIntent(ctx context.Context, customerID string) (*GatewaySetupIntent, error)

	// VerifyWebhook validates an inbound event signature against the shared
	// secret and returns the decoded event.
	VerifyWebhook(payload []byte, signature string) (stripe.Event, error)
}
