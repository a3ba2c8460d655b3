// Package checkout runs one checkout attempt: it validates the shipping and
// payment form, turns the cart into an order, submits it to the order
// service and clears the cart once the order is accepted.
//
// An attempt moves Editing -> Validating -> Submitting and ends in Completed
// or in Failed, from which the user may edit and submit again.
package checkout

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/metrics"
	"julianmorley.ca/con-plar/petstore/pkg/models"
)

type Phase int

const (
	Editing Phase = iota
	Validating
	Submitting
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Editing:
		return "editing"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

const (
	transportFailureMessage = "There was an error processing your order. Please try again."
	defaultRejectionMessage = "Failed to save order"
)

var (
	ErrSubmissionInFlight = errors.New("checkout: submission already in progress")
	ErrAttemptCompleted   = errors.New("checkout: attempt already completed")
)

// CartSource is the part of the cart checkout reads and clears.
type CartSource interface {
	Items() []models.CartLine
	RemoveFromCart(ctx context.Context, id string) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, order models.Order) (*models.CreateOrderResponse, error)
}

// Result describes an accepted order.
type Result struct {
	OrderNumber int          `json:"orderNumber"`
	Order       models.Order `json:"order"`
	// Unremoved lists cart lines whose removal could not be persisted.
	Unremoved []string `json:"unremoved,omitempty"`
}

// View is a read-only snapshot of the attempt with payment data redacted.
type View struct {
	State       Phase  `json:"state"`
	Message     string `json:"message,omitempty"`
	OrderNumber int    `json:"orderNumber,omitempty"`
	Form        Form   `json:"form"`
}

type Orchestrator struct {
	mu       sync.Mutex
	cart     CartSource
	orders   OrderCreator
	userID   string
	validate *validator.Validate
	now      func() time.Time
	draw     func() int

	issued      map[int]bool
	phase       Phase
	form        Form
	message     string
	orderNumber int
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithNumberSource replaces the uniform order number draw. Draws outside
// [OrderNumberMin, OrderNumberMax] or already issued are discarded.
func WithNumberSource(draw func() int) Option {
	return func(o *Orchestrator) { o.draw = draw }
}

func New(cart CartSource, orders OrderCreator, userID string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:     cart,
		orders:   orders,
		userID:   userID,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
		draw: func() int {
			return models.OrderNumberMin + rand.IntN(models.OrderNumberMax-models.OrderNumberMin+1)
		},
		issued: map[int]bool{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetField writes one form field by its JSON name.
func (o *Orchestrator) SetField(name, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.editable(); err != nil {
		return err
	}
	dst, ok := o.form.field(name)
	if !ok {
		return ErrUnknownField
	}
	*dst = value
	o.edited()
	return nil
}

func (o *Orchestrator) UpdateForm(patch FormPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.editable(); err != nil {
		return err
	}
	patch.apply(&o.form)
	o.edited()
	return nil
}

func (o *Orchestrator) editable() error {
	switch o.phase {
	case Validating, Submitting:
		return ErrSubmissionInFlight
	case Completed:
		return ErrAttemptCompleted
	}
	return nil
}

func (o *Orchestrator) edited() {
	o.message = ""
	o.phase = Editing
}

// Submit validates the form and cart and, if both pass, submits the order.
// On any failure the attempt moves to Failed with a user-facing Message and
// the cart is left alone.
func (o *Orchestrator) Submit(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if err := o.editable(); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.phase = Validating

	lines := o.cart.Items()
	if verr := o.check(lines); verr != nil {
		o.fail(verr.Message)
		o.mu.Unlock()
		return nil, verr
	}

	order := o.assemble(lines)
	o.issued[order.OrderNumber] = true
	o.phase = Submitting
	o.mu.Unlock()

	logger := log.WithFields(log.Fields{
		"order_number": order.OrderNumber,
		"lines":        len(order.Items),
		"items":        order.GetItemCount(),
		"total":        order.Total.String(),
	})
	logger.Info("Submitting order")

	// Once sent, the order runs to an answer even if the caller goes away;
	// the client timeout bounds it.
	ctx = context.WithoutCancel(ctx)
	ack, err := o.orders.CreateOrder(ctx, order)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		var appErr *errs.ApplicationError
		switch {
		case errors.As(err, &appErr):
			metrics.OrdersTotal.WithLabelValues("rejected").Inc()
			msg := appErr.Message
			if msg == "" {
				msg = defaultRejectionMessage
			}
			o.fail(msg)
		default:
			metrics.OrdersTotal.WithLabelValues("failed").Inc()
			o.fail(transportFailureMessage)
		}
		logger.WithError(err).Error("Order submission failed")
		return nil, err
	}
	if ack == nil || !ack.Success {
		metrics.OrdersTotal.WithLabelValues("rejected").Inc()
		msg := defaultRejectionMessage
		if ack != nil && ack.Message != "" {
			msg = ack.Message
		}
		o.fail(msg)
		return nil, &errs.ApplicationError{Op: "create order", Message: msg}
	}

	result := &Result{OrderNumber: order.OrderNumber, Order: order}
	for _, line := range lines {
		if err := o.cart.RemoveFromCart(ctx, line.ID); err != nil {
			logger.WithError(err).WithField("item_id", line.ID).Error("Failed to remove ordered item from cart")
			result.Unremoved = append(result.Unremoved, line.ID)
		}
	}

	o.form.CardNumber = ""
	o.form.CVV = ""
	o.orderNumber = order.OrderNumber
	o.message = ""
	o.phase = Completed

	metrics.OrdersTotal.WithLabelValues("completed").Inc()
	metrics.OrderAmount.Observe(order.Total.InexactFloat64())
	logger.Info("Order placed")

	return result, nil
}

// check runs the form rules then the empty-cart rule.
func (o *Orchestrator) check(lines []models.CartLine) *errs.ValidationError {
	verr := validateForm(o.validate, o.form)
	if verr == nil && len(lines) == 0 {
		verr = &errs.ValidationError{Field: "cart", Rule: "cart", Message: emptyCartMessage}
	}
	if verr != nil {
		metrics.CheckoutValidationFailures.WithLabelValues(verr.Rule).Inc()
		metrics.OrdersTotal.WithLabelValues("validation_failed").Inc()
		log.WithFields(log.Fields{"rule": verr.Rule, "field": verr.Field}).Info("Checkout form rejected")
	}
	return verr
}

func (o *Orchestrator) assemble(lines []models.CartLine) models.Order {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.NewOrderItem(line))
	}

	f := o.form
	order := models.Order{
		OrderNumber: o.nextOrderNumber(),
		OrderDate:   o.now(),
		UserID:      o.userID,
		Customer: models.Customer{
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Email:     f.Email,
			Phone:     f.Phone,
			Address:   f.Address,
			City:      f.City,
			State:     f.State,
			ZipCode:   f.ZipCode,
			FullName:  f.FirstName + " " + f.LastName,
		},
		Items: items,
		Payment: models.Payment{
			CardNumberLast4: lastN(f.CardNumber, 4),
			ExpiryDate:      f.ExpiryDate,
			Method:          models.PaymentMethodCreditCard,
		},
		Status:          models.OrderStatusProcessing,
		DeliveryAddress: models.FormatDeliveryAddress(f.Address, f.City, f.State, f.ZipCode),
	}
	order.Total = order.CalculateTotal()
	return order
}

func (o *Orchestrator) nextOrderNumber() int {
	for {
		n := o.draw()
		if models.ValidOrderNumber(n) && !o.issued[n] {
			return n
		}
	}
}

func (o *Orchestrator) fail(msg string) {
	o.message = msg
	o.phase = Failed
}

// Reset discards the current attempt and starts an empty one. Issued order
// numbers are remembered.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == Validating || o.phase == Submitting {
		return ErrSubmissionInFlight
	}
	o.phase = Editing
	o.form = Form{}
	o.message = ""
	o.orderNumber = 0
	return nil
}

func (o *Orchestrator) State() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Message is the error currently shown to the user, if any.
func (o *Orchestrator) Message() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.message
}

// OrderNumber is set once the attempt has completed.
func (o *Orchestrator) OrderNumber() (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderNumber, o.phase == Completed
}

func (o *Orchestrator) Form() Form {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.form
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		State:       o.phase,
		Message:     o.message,
		OrderNumber: o.orderNumber,
		Form:        o.form.Redacted(),
	}
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
