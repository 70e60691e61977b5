package messaging

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/bl-concierge/internal/activity"
	"github.com/wolfman30/bl-concierge/internal/docextract"
	"github.com/wolfman30/bl-concierge/internal/engine"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

var routerTracer = otel.Tracer("blconcierge.internal.messaging")

const (
	// ReceiptAckReply answers a document that yielded nothing usable.
	ReceiptAckReply = "We received your receipt. Please provide your BL number or payment details so we can process your payment."

	noReplyPlaceholder = "No reply generated"
)

// RouteStatus is what happened to an inbound message.
type RouteStatus string

const (
	RouteReplied   RouteStatus = "replied"
	RouteSelf      RouteStatus = "skipped_self"
	RouteEmpty     RouteStatus = "skipped_empty"
	RouteDuplicate RouteStatus = "duplicate"
	RouteFailed    RouteStatus = "failed"
)

// TurnProcessor runs one conversation turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, senderID, message string, tc engine.TurnContext) string
}

// RouteResult is the outcome of Route.
type RouteResult struct {
	Status RouteStatus
	Reply  string
}

// Router handles one inbound message: filtering, duplicate suppression,
// document extraction, the conversation turn, the reply and the admin copy.
type Router struct {
	turns     TurnProcessor
	messenger Messenger
	extractor docextract.Extractor
	deduper   session.Deduper
	activity  activity.Recorder
	metrics   *metrics.TurnMetrics
	adminID   string
	logger    *logging.Logger
}

// RouterOption configures optional Router collaborators.
type RouterOption func(*Router)

func WithExtractor(e docextract.Extractor) RouterOption {
	return func(r *Router) { r.extractor = e }
}

func WithDeduper(d session.Deduper) RouterOption {
	return func(r *Router) { r.deduper = d }
}

func WithActivity(rec activity.Recorder) RouterOption {
	return func(r *Router) { r.activity = rec }
}

func WithMetrics(m *metrics.TurnMetrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithAdminID copies every exchange to the given recipient.
func WithAdminID(id string) RouterOption {
	return func(r *Router) { r.adminID = strings.TrimSpace(id) }
}

func NewRouter(turns TurnProcessor, messenger Messenger, logger *logging.Logger, opts ...RouterOption) *Router {
	if turns == nil {
		panic("messaging: turn processor cannot be nil")
	}
	if messenger == nil {
		panic("messaging: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Router{turns: turns, messenger: messenger, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route processes msg and delivers the reply. The error is non-nil only when
// the reply could not be delivered.
func (r *Router) Route(ctx context.Context, msg InboundMessage) (RouteResult, error) {
	ctx, span := routerTracer.Start(ctx, "messaging.route")
	defer span.End()
	span.SetAttributes(attribute.String("blconcierge.sender", msg.Sender))

	res, err := r.route(ctx, msg)
	span.SetAttributes(attribute.String("blconcierge.route", string(res.Status)))
	if err != nil {
		span.RecordError(err)
	}
	r.metrics.ObserveInbound(string(res.Status))
	return res, err
}

func (r *Router) route(ctx context.Context, msg InboundMessage) (RouteResult, error) {
	if msg.FromSelf {
		return RouteResult{Status: RouteSelf}, nil
	}
	if strings.TrimSpace(msg.Text) == "" && !msg.hasDocument() {
		r.logger.Debug("skipping empty inbound message", "sender", msg.Sender, "message_id", msg.MessageID)
		return RouteResult{Status: RouteEmpty}, nil
	}

	if r.deduper != nil && msg.MessageID != "" {
		key := session.DedupeKey(msg.Sender, msg.MessageID)
		claimed, err := r.deduper.Acquire(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("dedupe claim failed; processing anyway", "sender", msg.Sender, "error", err)
		case !claimed:
			r.logger.Info("skipping duplicate inbound message", "sender", msg.Sender, "message_id", msg.MessageID)
			return RouteResult{Status: RouteDuplicate}, nil
		default:
			// The window starts when processing ends.
			defer r.releaseClaim(ctx, key)
		}
	}

	var fields docextract.Fields
	if msg.hasDocument() {
		r.record(ctx, activity.Entry{Kind: activity.KindIncomingFile, Sender: msg.Sender, Question: msg.Document.Filename})
		if r.extractor != nil {
			fields = r.extractor.Extract(ctx, *msg.Document)
		}
	}
	r.record(ctx, activity.Entry{Kind: activity.KindIncomingMessage, Sender: msg.Sender, Question: msg.Text})

	tc := engine.TurnContext{Identifiers: fields.Identifiers, PaidAmount: fields.PaidAmount}
	var reply string
	switch {
	case msg.hasDocument() && strings.TrimSpace(msg.Text) == "":
		if fields.Empty() {
			reply = ReceiptAckReply
		} else {
			reply = r.turns.ProcessTurn(ctx, msg.Sender, "", tc)
		}
	default:
		reply = r.turns.ProcessTurn(ctx, msg.Sender, msg.Text, tc)
	}

	if reply != "" {
		if err := r.messenger.Send(ctx, msg.Sender, reply); err != nil {
			r.logger.Error("failed to deliver reply", "sender", msg.Sender, "error", err)
			return RouteResult{Status: RouteFailed, Reply: reply}, fmt.Errorf("messaging: deliver reply: %w", err)
		}
	}
	r.forwardToAdmin(ctx, msg, reply)
	return RouteResult{Status: RouteReplied, Reply: reply}, nil
}

func (r *Router) forwardToAdmin(ctx context.Context, msg InboundMessage, reply string) {
	if r.adminID == "" || msg.Sender == r.adminID {
		return
	}
	if reply == "" {
		reply = noReplyPlaceholder
	}
	text := fmt.Sprintf("Customer %s asked: \"%s\"\nAI replied: \"%s\"", msg.Sender, msg.Text, reply)
	if err := r.messenger.Send(ctx, r.adminID, text); err != nil {
		r.logger.Warn("failed to forward exchange to admin", "sender", msg.Sender, "error", err)
	}
}

func (r *Router) releaseClaim(ctx context.Context, key string) {
	if err := r.deduper.Release(context.WithoutCancel(ctx), key); err != nil {
		r.logger.Warn("dedupe release failed", "key", key, "error", err)
	}
}

func (r *Router) record(ctx context.Context, entry activity.Entry) {
	if r.activity == nil {
		return
	}
	if err := r.activity.Record(ctx, entry); err != nil {
		r.logger.Warn("activity record failed", "sender", entry.Sender, "kind", entry.Kind, "error", err)
	}
}
