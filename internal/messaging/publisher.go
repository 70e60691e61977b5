package messaging

import (
	"context"
	"fmt"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing and, when a
// job recorder is set, tracks each one as a job.
type Publisher struct {
	queue  Queue
	jobs   JobRecorder
	logger *logging.Logger
}

func NewPublisher(queue Queue, jobs JobRecorder, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// Enqueue validates msg, records a pending job and queues it. It returns the
// job id.
func (p *Publisher) Enqueue(ctx context.Context, msg InboundMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	msg, body, err := encodeMessage(msg)
	if err != nil {
		return "", err
	}

	if p.jobs != nil {
		job := &JobRecord{JobID: msg.JobID, Sender: msg.Sender, MessageID: msg.MessageID}
		if err := p.jobs.PutPending(ctx, job); err != nil {
			return "", fmt.Errorf("messaging: failed to record job: %w", err)
		}
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("messaging: failed to enqueue message: %w", err)
	}

	p.logger.Debug("inbound message enqueued", "job_id", msg.JobID, "sender", msg.Sender)
	return msg.JobID, nil
}
