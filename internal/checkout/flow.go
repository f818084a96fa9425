// Package checkout submits a cart against a work order and tracks the
// submission until the user acknowledges its outcome.
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

type State string

const (
	Idle       State = "idle"
	Submitting State = "submitting"
	Succeeded  State = "success"
	Failed     State = "failed"
)

var ErrSubmitInProgress = errors.New("checkout already in progress")

const (
	MsgMissingInput = "add items to the cart and enter a work order number"
	MsgSuccess      = "checkout completed"
	MsgFailed       = "checkout failed"
)

// Submitter is the part of the gateway the flow uses.
type Submitter interface {
	SubmitCheckout(ctx context.Context, req models.CheckoutRequest) (gateway.CheckoutResult, error)
}

// Cart is the part of the cart the flow reads and clears.
type Cart interface {
	IsEmpty() bool
	CheckoutItems() []models.CheckoutItem
	ClearCart()
}

// Outcome is the terminal result of a submission.
type Outcome struct {
	State   State
	Message string
	Err     error
}

type Option func(*Flow)

// WithOnSuccess registers a hook run after the cart has been cleared by a
// successful checkout. The dashboard uses it to clear the work order field
// and re-fetch inventory.
func WithOnSuccess(fn func(ctx context.Context)) Option {
	return func(f *Flow) { f.onSuccess = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) { f.log = l }
}

type Flow struct {
	mu        sync.Mutex
	gw        Submitter
	state     State
	last      Outcome
	onSuccess func(ctx context.Context)
	log       *zap.Logger
	tracer    trace.Tracer
}

func NewFlow(gw Submitter, opts ...Option) *Flow {
	f := &Flow{
		gw:     gw,
		state:  Idle,
		log:    zap.NewNop(),
		tracer: otel.Tracer("kp-inventory/checkout"),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the last terminal outcome; ok is false while idle or submitting.
func (f *Flow) Result() (Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Succeeded && f.state != Failed {
		return Outcome{}, false
	}
	return f.last, true
}

// Acknowledge returns a finished flow to Idle.
func (f *Flow) Acknowledge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Succeeded || f.state == Failed {
		f.state = Idle
		f.last = Outcome{}
	}
}

// Submit validates the cart and work order locally, sends the checkout, and
// records the outcome. The returned error is nil only on success. A call
// made while another submission is in flight returns ErrSubmitInProgress
// and changes nothing.
func (f *Flow) Submit(ctx context.Context, c Cart, workOrder string) (Outcome, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return Outcome{State: Submitting}, ErrSubmitInProgress
	}
	wo := strings.TrimSpace(workOrder)
	if c.IsEmpty() || wo == "" {
		out := f.finishLocked(gateway.NewLocalValidation(MsgMissingInput), "")
		f.mu.Unlock()
		return out, out.Err
	}
	req := models.CheckoutRequest{WorkOrderNumber: wo, Items: c.CheckoutItems()}
	f.state = Submitting
	f.last = Outcome{}
	f.mu.Unlock()

	ctx, span := f.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("work_order", wo),
		attribute.Int("lines", len(req.Items)),
	))
	defer span.End()

	res, err := f.gw.SubmitCheckout(ctx, req)
	if err == nil && !res.Success {
		msg := res.Message
		if msg == "" {
			msg = MsgFailed
		}
		err = gateway.NewRejected(msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.log.Warn("checkout failed",
			zap.String("workOrder", wo),
			zap.String("kind", string(gateway.KindOf(err))),
			zap.Error(err))
		f.mu.Lock()
		out := f.finishLocked(err, "")
		f.mu.Unlock()
		return out, err
	}

	c.ClearCart()
	msg := res.Message
	if msg == "" {
		msg = MsgSuccess
	}
	f.log.Info("checkout submitted", zap.String("workOrder", wo), zap.Int("lines", len(req.Items)))

	f.mu.Lock()
	out := f.finishLocked(nil, msg)
	f.mu.Unlock()

	if f.onSuccess != nil {
		f.onSuccess(ctx)
	}
	return out, nil
}

func (f *Flow) finishLocked(err error, msg string) Outcome {
	if err != nil {
		f.state = Failed
		f.last = Outcome{State: Failed, Message: err.Error(), Err: err}
	} else {
		f.state = Succeeded
		f.last = Outcome{State: Succeeded, Message: msg}
	}
	return f.last
}
