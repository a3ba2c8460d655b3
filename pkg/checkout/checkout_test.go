package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"julianmorley.ca/con-plar/petstore/pkg/cart"
	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/models"
	"julianmorley.ca/con-plar/petstore/pkg/store"
	"julianmorley.ca/con-plar/petstore/pkg/store/storetest"
)

type fakeOrders struct {
	mu     sync.Mutex
	orders []models.Order
	ack    *models.CreateOrderResponse
	err    error
	// gate, when set, blocks CreateOrder until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeOrders) CreateOrder(ctx context.Context, order models.Order) (*models.CreateOrderResponse, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, &errs.TransportError{Op: "create order", Cause: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	if f.err != nil {
		return nil, f.err
	}
	if f.ack != nil {
		return f.ack, nil
	}
	return &models.CreateOrderResponse{Success: true, OrderNumber: order.OrderNumber}, nil
}

func (f *fakeOrders) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func validForm() FormPatch {
	s := func(v string) *string { return &v }
	return FormPatch{
		FirstName:  s("Ada"),
		LastName:   s("Lovelace"),
		Email:      s("ada@example.com"),
		Phone:      s("+1 555-010-2000"),
		Address:    s("12 Analytical Way"),
		City:       s("London"),
		State:      s("LN"),
		ZipCode:    s("10001"),
		CardNumber: s("4111111111114242"),
		ExpiryDate: s("09/29"),
		CVV:        s("123"),
	}
}

func filledCart(t *testing.T, s store.Store) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c := cart.New(ctx, s)
	require.NoError(t, c.AddToCart(ctx, models.Product{ID: "bed", Name: "Dog Bed", Price: decimal.RequireFromString("49.99")}))
	require.NoError(t, c.AddToCart(ctx, models.Product{ID: "toy", Name: "Rope Toy", Price: decimal.RequireFromString("5.25"), Image: "/toy.png"}))
	require.NoError(t, c.AddToCart(ctx, models.Product{ID: "toy", Name: "Rope Toy", Price: decimal.RequireFromString("5.25"), Image: "/toy.png"}))
	return c
}

func ready(t *testing.T, orders OrderCreator, opts ...Option) (*Orchestrator, *cart.Cart) {
	t.Helper()
	c := filledCart(t, store.NewMemory())
	o := New(c, orders, "user_test", opts...)
	require.NoError(t, o.UpdateForm(validForm()))
	return o, c
}

func TestSubmitSuccess(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{}
	o, c := ready(t, orders)
	wantTotal := c.Total()

	res, err := o.Submit(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, orders.calls())
	sent := orders.orders[0]
	assert.True(t, models.ValidOrderNumber(res.OrderNumber))
	assert.Equal(t, res.OrderNumber, sent.OrderNumber)
	assert.True(t, sent.Total.Equal(wantTotal), "total %s want %s", sent.Total, wantTotal)
	assert.Equal(t, "4242", sent.Payment.CardNumberLast4)
	assert.Equal(t, models.PaymentMethodCreditCard, sent.Payment.Method)
	assert.Equal(t, models.OrderStatusProcessing, sent.Status)
	assert.Equal(t, "user_test", sent.UserID)
	assert.Equal(t, "Ada Lovelace", sent.Customer.FullName)
	assert.Equal(t, "12 Analytical Way, London, LN 10001", sent.DeliveryAddress)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, models.PlaceholderImage, sent.Items[0].Image)
	assert.Equal(t, "/toy.png", sent.Items[1].Image)
	assert.Equal(t, 2, sent.Items[1].Quantity)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Completed, o.State())
	n, ok := o.OrderNumber()
	assert.True(t, ok)
	assert.Equal(t, res.OrderNumber, n)
	assert.Empty(t, o.Form().CardNumber)
	assert.Empty(t, o.Form().CVV)
	assert.Equal(t, "Ada", o.Form().FirstName)
}

func TestSubmitAfterCompletedIsRejected(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{}
	o, _ := ready(t, orders)
	_, err := o.Submit(ctx)
	require.NoError(t, err)

	_, err = o.Submit(ctx)
	assert.ErrorIs(t, err, ErrAttemptCompleted)
	assert.ErrorIs(t, o.SetField("city", "Paris"), ErrAttemptCompleted)
	assert.Equal(t, 1, orders.calls())
}

func TestValidationRules(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		message string
	}{
		{"missing first name", "firstName", "", "Please fill in all required fields: firstName"},
		{"missing cvv", "cvv", "", "Please fill in all required fields: cvv"},
		{"bad email", "email", "ada@example", "Please enter a valid email address"},
		{"email with space", "email", "ada @example.com", "Please enter a valid email address"},
		{"email with no-break space", "email", "ada\u00a0@example.com", "Please enter a valid email address"},
		{"email with ideographic space", "email", "ada@exa\u3000mple.com", "Please enter a valid email address"},
		{"short phone", "phone", "555-0100", "Please enter a valid phone number"},
		{"phone without digits", "phone", "- - - - - - ", "Please enter a valid phone number"},
		{"phone with letters", "phone", "555-010-200x", "Please enter a valid phone number"},
		{"card too short", "cardNumber", "411111111111111", "Please enter a valid 16-digit card number"},
		{"card with spaces", "cardNumber", "4111 1111 1111 1111", "Please enter a valid 16-digit card number"},
		{"expiry month 13", "expiryDate", "13/29", "Please enter a valid expiry date (MM/YY)"},
		{"expiry without slash", "expiryDate", "0929", "Please enter a valid expiry date (MM/YY)"},
		{"cvv four digits", "cvv", "1234", "Please enter a valid 3-digit CVV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &fakeOrders{}
			o, c := ready(t, orders)
			require.NoError(t, o.SetField(tt.field, tt.value))

			_, err := o.Submit(context.Background())
			var verr *errs.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message)
			assert.Equal(t, tt.message, o.Message())
			assert.Equal(t, Failed, o.State())
			assert.Equal(t, 0, orders.calls())
			assert.Equal(t, 2, c.Len())
		})
	}
}

func TestPhoneAcceptsUnicodeSpaces(t *testing.T) {
	o, _ := ready(t, &fakeOrders{})
	require.NoError(t, o.SetField("phone", "555\u00a0010\u00a02000"))

	_, err := o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, o.State())
}

func TestMissingFieldsListedInFormOrder(t *testing.T) {
	o := New(cart.New(context.Background(), store.NewMemory()), &fakeOrders{}, "u")
	require.NoError(t, o.SetField("email", "not-an-email"))
	require.NoError(t, o.SetField("lastName", "Lovelace"))

	_, err := o.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t,
		"Please fill in all required fields: firstName, phone, address, city, state, zipCode, cardNumber, expiryDate, cvv",
		o.Message())
}

func TestFormRulesCheckedBeforeEmptyCart(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{}
	o := New(cart.New(ctx, store.NewMemory()), orders, "u")
	require.NoError(t, o.UpdateForm(validForm()))
	require.NoError(t, o.SetField("cvv", "12"))

	_, err := o.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, "Please enter a valid 3-digit CVV", o.Message())

	require.NoError(t, o.SetField("cvv", "123"))
	_, err = o.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, "Your cart is empty", o.Message())
	assert.Equal(t, 0, orders.calls())
}

func TestEditingClearsErrorAndReturnsToEditing(t *testing.T) {
	o, _ := ready(t, &fakeOrders{})
	require.NoError(t, o.SetField("email", "bad"))
	_, err := o.Submit(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, o.Message())

	require.NoError(t, o.SetField("email", "ada@example.com"))
	assert.Empty(t, o.Message())
	assert.Equal(t, Editing, o.State())
}

func TestSetFieldUnknownName(t *testing.T) {
	o := New(cart.New(context.Background(), store.NewMemory()), &fakeOrders{}, "u")
	assert.ErrorIs(t, o.SetField("favouriteColour", "blue"), ErrUnknownField)
}

func TestApplicationFailureSurfacesMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("message from service", func(t *testing.T) {
		orders := &fakeOrders{err: &errs.ApplicationError{Op: "create order", StatusCode: 409, Message: "Order number already exists"}}
		o, c := ready(t, orders)
		_, err := o.Submit(ctx)
		assert.True(t, errs.IsApplication(err))
		assert.Equal(t, "Order number already exists", o.Message())
		assert.Equal(t, Failed, o.State())
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, "4111111111114242", o.Form().CardNumber)
	})

	t.Run("no message", func(t *testing.T) {
		orders := &fakeOrders{err: &errs.ApplicationError{Op: "create order"}}
		o, _ := ready(t, orders)
		_, err := o.Submit(ctx)
		require.Error(t, err)
		assert.Equal(t, "Failed to save order", o.Message())
	})

	t.Run("unsuccessful acknowledgement", func(t *testing.T) {
		orders := &fakeOrders{ack: &models.CreateOrderResponse{Success: false, Message: "Out of stock"}}
		o, c := ready(t, orders)
		_, err := o.Submit(ctx)
		assert.True(t, errs.IsApplication(err))
		assert.Equal(t, "Out of stock", o.Message())
		assert.Equal(t, 2, c.Len())
	})
}

func TestTransportFailureShowsGenericMessage(t *testing.T) {
	orders := &fakeOrders{err: &errs.TransportError{Op: "create order", Cause: errors.New("connection refused")}}
	o, c := ready(t, orders)

	_, err := o.Submit(context.Background())
	assert.True(t, errs.IsTransport(err))
	assert.Equal(t, "There was an error processing your order. Please try again.", o.Message())
	assert.Equal(t, Failed, o.State())
	assert.Equal(t, 2, c.Len())
}

func TestRetryAfterFailureUsesNewOrderNumber(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{err: &errs.TransportError{Op: "create order"}}
	o, c := ready(t, orders)

	_, err := o.Submit(ctx)
	require.Error(t, err)

	orders.mu.Lock()
	orders.err = nil
	orders.mu.Unlock()

	res, err := o.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, orders.calls())
	assert.NotEqual(t, orders.orders[0].OrderNumber, res.OrderNumber)
	assert.Equal(t, 0, c.Len())
}

func TestOrderNumbersNeverReused(t *testing.T) {
	draws := []int{42, 123456, 123456, 1000000, 654321}
	i := 0
	draw := func() int {
		n := draws[i]
		i++
		return n
	}
	orders := &fakeOrders{err: &errs.TransportError{Op: "create order"}}
	o, _ := ready(t, orders, WithNumberSource(draw))

	_, _ = o.Submit(context.Background())
	_, _ = o.Submit(context.Background())
	require.Equal(t, 2, orders.calls())
	assert.Equal(t, 123456, orders.orders[0].OrderNumber)
	assert.Equal(t, 654321, orders.orders[1].OrderNumber)
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	orders := &fakeOrders{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	o, _ := ready(t, orders)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background())
		done <- err
	}()

	select {
	case <-orders.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("order submission never started")
	}

	assert.Equal(t, Submitting, o.State())
	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.ErrorIs(t, o.SetField("city", "Paris"), ErrSubmissionInFlight)
	assert.ErrorIs(t, o.Reset(), ErrSubmissionInFlight)

	close(orders.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, orders.calls())
	assert.Equal(t, Completed, o.State())
}

func TestCallerCancellationDoesNotAbandonSubmittedOrder(t *testing.T) {
	orders := &fakeOrders{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	o, c := ready(t, orders)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx)
		done <- err
	}()

	select {
	case <-orders.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("order submission never started")
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(orders.gate)

	require.NoError(t, <-done)
	assert.Equal(t, Completed, o.State())
	assert.Empty(t, o.Message())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, orders.calls())
}

func TestRemovalFailuresAreReported(t *testing.T) {
	flaky := storetest.NewFlaky(nil)
	c := filledCart(t, flaky)
	o := New(c, &fakeOrders{}, "u")
	require.NoError(t, o.UpdateForm(validForm()))
	flaky.FailWrites(true)

	res, err := o.Submit(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bed", "toy"}, res.Unremoved)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Completed, o.State())
}

func TestResetStartsFreshAttempt(t *testing.T) {
	ctx := context.Background()
	orders := &fakeOrders{}
	o, _ := ready(t, orders)
	first, err := o.Submit(ctx)
	require.NoError(t, err)

	require.NoError(t, o.Reset())
	assert.Equal(t, Editing, o.State())
	assert.Equal(t, Form{}, o.Form())
	_, ok := o.OrderNumber()
	assert.False(t, ok)
	assert.True(t, o.issued[first.OrderNumber])
}

func TestViewRedactsPayment(t *testing.T) {
	o, _ := ready(t, &fakeOrders{})
	v := o.View()
	assert.Equal(t, "************4242", v.Form.CardNumber)
	assert.Empty(t, v.Form.CVV)
	assert.Equal(t, Editing, v.State)
	assert.Equal(t, "4111111111114242", o.Form().CardNumber)
}
