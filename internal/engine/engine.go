// Package engine runs one conversation turn end to end: identifier
// resolution, intent selection, verification and reply composition.
package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/bl-concierge/internal/activity"
	"github.com/wolfman30/bl-concierge/internal/canned"
	"github.com/wolfman30/bl-concierge/internal/classify"
	"github.com/wolfman30/bl-concierge/internal/compose"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/internal/lookup"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/internal/verify"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

var engineTracer = otel.Tracer("blconcierge.internal.engine")

const (
	// maxReplayDepth bounds how many deferred requests one inbound message
	// may re-run.
	maxReplayDepth = 1

	// maxHistoryTurns caps the history sent to the classifier.
	maxHistoryTurns = 20
)

// TurnContext carries caller-supplied data for one turn.
type TurnContext struct {
	// Identifiers seed the turn, typically from document extraction.
	Identifiers []string
	// PaidAmount is used when the message itself names no amount.
	PaidAmount *float64
	// SkipExtraction trusts Identifiers as already validated and skips
	// extraction from the message text.
	SkipExtraction bool
}

// IntentClassifier picks an intent when no canned answer applies.
type IntentClassifier interface {
	Classify(ctx context.Context, history []llm.ChatMessage, valid, invalid []string) classify.Result
}

// Localizer adapts a reply to the language of the inbound message.
type Localizer interface {
	Localize(ctx context.Context, inbound, reply string) string
}

// Deps are the collaborators of an Engine. Activity and Metrics are optional.
type Deps struct {
	Sessions   session.Store
	Locker     *session.Locker
	Gate       *verify.Gate
	Lookup     lookup.Store
	Matcher    *canned.Matcher
	Classifier IntentClassifier
	Composer   *compose.Composer
	Localizer  Localizer
	Activity   activity.Recorder
	Metrics    *metrics.TurnMetrics
	Logger     *logging.Logger
}

// Engine processes conversation turns. It is safe for concurrent use; turns
// from the same sender are serialised.
type Engine struct {
	sessions   session.Store
	locker     *session.Locker
	gate       *verify.Gate
	lookup     lookup.Store
	matcher    *canned.Matcher
	classifier IntentClassifier
	composer   *compose.Composer
	localizer  Localizer
	activity   activity.Recorder
	metrics    *metrics.TurnMetrics
	tracer     trace.Tracer
	logger     *logging.Logger
}

func New(deps Deps) *Engine {
	switch {
	case deps.Sessions == nil:
		panic("engine: session store cannot be nil")
	case deps.Gate == nil:
		panic("engine: verification gate cannot be nil")
	case deps.Lookup == nil:
		panic("engine: lookup store cannot be nil")
	case deps.Classifier == nil:
		panic("engine: classifier cannot be nil")
	case deps.Composer == nil:
		panic("engine: composer cannot be nil")
	case deps.Localizer == nil:
		panic("engine: localizer cannot be nil")
	}
	if deps.Locker == nil {
		deps.Locker = session.NewLocker()
	}
	if deps.Matcher == nil {
		deps.Matcher = canned.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{
		sessions:   deps.Sessions,
		locker:     deps.Locker,
		gate:       deps.Gate,
		lookup:     deps.Lookup,
		matcher:    deps.Matcher,
		classifier: deps.Classifier,
		composer:   deps.Composer,
		localizer:  deps.Localizer,
		activity:   deps.Activity,
		metrics:    deps.Metrics,
		tracer:     engineTracer,
		logger:     deps.Logger,
	}
}

// ProcessTurn handles one inbound message and returns the reply. It never
// fails: collaborator errors degrade to fallback replies.
func (e *Engine) ProcessTurn(ctx context.Context, senderID, message string, tc TurnContext) string {
	ctx, span := e.tracer.Start(ctx, "engine.process_turn")
	defer span.End()
	span.SetAttributes(attribute.String("blconcierge.sender", senderID))
	start := time.Now()

	unlock := e.locker.Lock(senderID)
	defer unlock()

	sess, err := e.sessions.Load(ctx, senderID)
	if err != nil {
		e.logger.Error("session load failed; starting fresh", "sender", senderID, "error", err)
		sess = session.New(senderID)
	}
	sess.Verification = e.gate.Refresh(sess.Verification)

	current, currentCtx := message, tc
	var out turnOutcome
	for depth := 0; ; depth++ {
		out = e.runTurn(ctx, sess, current, currentCtx)
		if out.replay == nil {
			break
		}
		if depth >= maxReplayDepth {
			e.logger.Warn("replay depth exceeded", "sender", senderID, "depth", depth)
			out = turnOutcome{reply: classify.DefaultAnswer, classification: string(classify.IntentGeneralQuestion)}
			break
		}
		e.metrics.ObserveReplay()
		e.logger.Info("replaying deferred request after verification", "sender", senderID, "bl_numbers", out.replay.Identifiers)
		current = out.replay.Message
		currentCtx = TurnContext{Identifiers: out.replay.Identifiers, SkipExtraction: true}
	}

	reply := e.localizer.Localize(ctx, current, out.reply)
	sess.Append(session.RoleAssistant, reply)
	sess.UpdatedAt = e.gate.Now()
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Error("session save failed", "sender", senderID, "error", err)
	}

	e.recordActivity(ctx, activity.Entry{
		Kind:           activity.KindAIReply,
		Sender:         senderID,
		Question:       message,
		Reply:          reply,
		Classification: out.classification,
		Identifiers:    out.identifiers,
	})
	e.metrics.ObserveTurn(out.classification, time.Since(start).Seconds())
	span.SetAttributes(attribute.String("blconcierge.classification", out.classification))
	return reply
}

func (e *Engine) recordActivity(ctx context.Context, entry activity.Entry) {
	if e.activity == nil {
		return
	}
	if err := e.activity.Record(ctx, entry); err != nil {
		e.logger.Warn("activity record failed", "sender", entry.Sender, "error", err)
	}
}

// Reset forgets everything about a sender.
func (e *Engine) Reset(ctx context.Context, senderID string) error {
	unlock := e.locker.Lock(senderID)
	defer unlock()
	if err := e.sessions.Delete(ctx, senderID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return nil
}
