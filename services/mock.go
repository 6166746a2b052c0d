package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// MockGateway is an in-memory PaymentGateway for tests. Behavior hooks let
// a test override individual calls; everything else runs against the
// stored state.
type MockGateway struct {
	mu sync.Mutex

	Customers      map[string]*Customer             // by id
	Subscriptions  map[string]*GatewaySubscription  // by id
	Invoices       map[string]*GatewayInvoice       // by id
	PaymentIntents map[string]*GatewayPaymentIntent // by id
	PaymentMethods map[string]*GatewayPaymentMethod // by id
	Prices         []*GatewayPrice

	// NextSubscriptionStatus is the status assigned to subscriptions
	// created through CreateSubscription. Defaults to "incomplete".
	NextSubscriptionStatus string
	// FailPaymentIntents makes created payment intents end in
	// "requires_payment_method" with a card_declined failure.
	FailPaymentIntents bool
	// VerifyWebhookErr forces signature verification failure.
	VerifyWebhookErr error

	CreateCustomerCalls int
	CreatedTransactions int
	seq                 int
}

var _ PaymentGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{
		Customers:      make(map[string]*Customer),
		Subscriptions:  make(map[string]*GatewaySubscription),
		Invoices:       make(map[string]*GatewayInvoice),
		PaymentIntents: make(map[string]*GatewayPaymentIntent),
		PaymentMethods: make(map[string]*GatewayPaymentMethod),
	}
}

func (m *MockGateway) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_mock_%d", prefix, m.seq)
}

func (m *MockGateway) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (m *MockGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCustomerCalls++
	c := &Customer{ID: m.nextID("cus"), Email: params.Email, Name: params.Name}
	m.Customers[c.ID] = c
	return c, nil
}

func (m *MockGateway) CreatePlan(ctx context.Context, params CreatePlanParams) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	productID := m.nextID("prod")
	priceID := m.nextID("price")
	m.Prices = append(m.Prices, &GatewayPrice{
		ID:            priceID,
		ProductID:     productID,
		ProductName:   params.Name,
		UnitAmount:    params.Amount,
		Currency:      params.Currency,
		Interval:      params.Interval,
		IntervalCount: params.IntervalCount,
		Active:        true,
	})
	return productID, priceID, nil
}

func (m *MockGateway) UpdateProduct(ctx context.Context, productID, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Prices {
		if p.ProductID == productID {
			p.ProductName = name
		}
	}
	return nil
}

func (m *MockGateway) DeactivatePrice(ctx context.Context, priceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Prices {
		if p.ID == priceID {
			p.Active = false
			return nil
		}
	}
	return fmt.Errorf("price %s not found", priceID)
}

func (m *MockGateway) ListPrices(ctx context.Context, limit int) ([]*GatewayPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*GatewayPrice, len(m.Prices))
	copy(out, m.Prices)
	return out, nil
}

func (m *MockGateway) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*GatewaySubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.NextSubscriptionStatus
	if status == "" {
		status = "incomplete"
	}
	if params.TrialPeriodDays > 0 {
		status = "trialing"
	}

	now := time.Now().UTC()
	sub := &GatewaySubscription{
		ID:                 m.nextID("sub"),
		CustomerID:         params.CustomerID,
		Status:             status,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		PriceID:            params.PriceID,
		ClientSecret:       m.nextID("pi") + "_secret",
	}
	if params.TrialPeriodDays > 0 {
		trialEnd := now.AddDate(0, 0, params.TrialPeriodDays)
		sub.TrialStart = &now
		sub.TrialEnd = &trialEnd
	}

	inv := &GatewayInvoice{
		ID:             m.nextID("in"),
		SubscriptionID: sub.ID,
		CustomerID:     params.CustomerID,
		AmountDue:      4900,
		Currency:       "usd",
		Status:         "open",
	}
	sub.LatestInvoiceID = inv.ID
	m.Invoices[inv.ID] = inv
	m.Subscriptions[sub.ID] = sub
	return cloneSub(sub), nil
}

func (m *MockGateway) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.Subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s not found", id)
	}
	return cloneSub(sub), nil
}

func (m *MockGateway) CancelSubscription(ctx context.Context, id string, cancelAtPeriodEnd bool) (*GatewaySubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.Subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s not found", id)
	}
	if cancelAtPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		now := time.Now().UTC()
		sub.Status = "canceled"
		sub.CanceledAt = &now
		sub.EndedAt = &now
	}
	return cloneSub(sub), nil
}

func (m *MockGateway) GetInvoice(ctx context.Context, id string) (*GatewayInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.Invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s not found", id)
	}
	out := *inv
	return &out, nil
}

func (m *MockGateway) PayInvoiceOutOfBand(ctx context.Context, id string) (*GatewayInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.Invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s not found", id)
	}
	inv.Paid = true
	inv.Status = "paid"
	inv.AmountPaid = inv.AmountDue

	// Settling the first invoice activates the subscription.
	if sub, ok := m.Subscriptions[inv.SubscriptionID]; ok {
		sub.Status = "active"
	}
	out := *inv
	return &out, nil
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*GatewayPaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi := &GatewayPaymentIntent{
		ID:         m.nextID("pi"),
		CustomerID: params.CustomerID,
		Amount:     params.Amount,
		Currency:   params.Currency,
		Status:     "succeeded",
	}
	if m.FailPaymentIntents {
		pi.Status = "requires_payment_method"
		pi.FailureCode = "card_declined"
		pi.FailureMessage = "Your card was declined."
	}
	if pm, ok := m.PaymentMethods[params.PaymentMethodID]; ok {
		pi.CardBrand = pm.Brand
		pi.CardLast4 = pm.Last4
	}
	m.PaymentIntents[pi.ID] = pi
	out := *pi
	return &out, nil
}

func (m *MockGateway) ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*GatewayPaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.PaymentIntents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %s not found", id)
	}
	if m.FailPaymentIntents {
		pi.Status = "requires_payment_method"
		pi.FailureCode = "card_declined"
	} else {
		pi.Status = "succeeded"
	}
	out := *pi
	return &out, nil
}

func (m *MockGateway) GetPaymentIntent(ctx context.Context, id string) (*GatewayPaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.PaymentIntents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %s not found", id)
	}
	out := *pi
	return &out, nil
}

func (m *MockGateway) ListPaymentIntents(ctx context.Context, limit int) ([]*GatewayPaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*GatewayPaymentIntent, 0, len(m.PaymentIntents))
	for _, pi := range m.PaymentIntents {
		c := *pi
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockGateway) GetPaymentMethod(ctx context.Context, id string) (*GatewayPaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.PaymentMethods[id]
	if !ok {
		return nil, fmt.Errorf("payment method %s not found", id)
	}
	out := *pm
	return &out, nil
}

func (m *MockGateway) ListPaymentMethods(ctx context.Context, customerID string) ([]*GatewayPaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*GatewayPaymentMethod
	for _, pm := range m.PaymentMethods {
		if pm.CustomerID == customerID {
			c := *pm
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockGateway) DetachPaymentMethod(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.PaymentMethods[id]; !ok {
		return fmt.Errorf("payment method %s not found", id)
	}
	delete(m.PaymentMethods, id)
	return nil
}

func (m *MockGateway) CreateSetupIntent(ctx context.Context, customerID string) (*GatewaySetupIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &GatewaySetupIntent{ID: m.nextID("seti"), ClientSecret: m.nextID("seti") + "_secret"}, nil
}

// VerifyWebhook decodes the payload as a stripe.Event without checking the
// signature, unless VerifyWebhookErr is set.
func (m *MockGateway) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	if m.VerifyWebhookErr != nil {
		return stripe.Event{}, m.VerifyWebhookErr
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

// AddCustomer seeds a customer and returns it.
func (m *MockGateway) AddCustomer(email, name string) *Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &Customer{ID: m.nextID("cus"), Email: email, Name: name}
	m.Customers[c.ID] = c
	return c
}

// AddPaymentMethod seeds a card payment method owned by the customer.
func (m *MockGateway) AddPaymentMethod(customerID string) *GatewayPaymentMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm := &GatewayPaymentMethod{ID: m.nextID("pm"), CustomerID: customerID, Brand: "visa", Last4: "4242"}
	m.PaymentMethods[pm.ID] = pm
	return pm
}

func cloneSub(sub *GatewaySubscription) *GatewaySubscription {
	out := *sub
	return &out
}
