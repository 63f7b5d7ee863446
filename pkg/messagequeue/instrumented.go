package messagequeue

import (
	"context"

	"github.com/agentmesh/engine/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedQueue wraps a Queue with tracing and structured logging.
type InstrumentedQueue struct {
	next   Queue
	tracer trace.Tracer
}

// NewInstrumentedQueue wraps next with OpenTelemetry spans and slog calls.
func NewInstrumentedQueue(next Queue) *InstrumentedQueue {
	return &InstrumentedQueue{next: next, tracer: otel.Tracer("pkg/messagequeue")}
}

func (q *InstrumentedQueue) Send(ctx context.Context, req SendRequest) (string, error) {
	ctx, span := q.tracer.Start(ctx, "messagequeue.Send", trace.WithAttributes(
		attribute.String("messagequeue.type", req.Type),
		attribute.String("messagequeue.channel", req.Channel),
		attribute.Int("messagequeue.priority", req.Priority),
	))
	defer span.End()

	id, err := q.next.Send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "send failed", "type", req.Type, "error", err)
		return "", err
	}
	span.SetStatus(codes.Ok, "sent")
	logger.L().InfoContext(ctx, "message sent", "message_id", id, "type", req.Type)
	return id, nil
}

func (q *InstrumentedQueue) Receive(ctx context.Context, agentID string, channels []string, limit int, typeFilter string) ([]Message, error) {
	ctx, span := q.tracer.Start(ctx, "messagequeue.Receive", trace.WithAttributes(
		attribute.String("messagequeue.agent_id", agentID),
		attribute.Int("messagequeue.limit", limit),
	))
	defer span.End()

	msgs, err := q.next.Receive(ctx, agentID, channels, limit, typeFilter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "receive failed", "agent_id", agentID, "error", err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "received")
	return msgs, nil
}

func (q *InstrumentedQueue) Claim(ctx context.Context, agentID, messageID string) (bool, error) {
	ctx, span := q.tracer.Start(ctx, "messagequeue.Claim", trace.WithAttributes(
		attribute.String("messagequeue.agent_id", agentID),
		attribute.String("messagequeue.message_id", messageID),
	))
	defer span.End()

	ok, err := q.next.Claim(ctx, agentID, messageID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "claim failed", "agent_id", agentID, "message_id", messageID, "error", err)
		return false, err
	}
	logger.L().InfoContext(ctx, "claim attempted", "agent_id", agentID, "message_id", messageID, "won", ok)
	span.SetStatus(codes.Ok, "claim evaluated")
	return ok, nil
}

func (q *InstrumentedQueue) Complete(ctx context.Context, messageID string, errMsg string) error {
	ctx, span := q.tracer.Start(ctx, "messagequeue.Complete", trace.WithAttributes(
		attribute.String("messagequeue.message_id", messageID),
	))
	defer span.End()

	err := q.next.Complete(ctx, messageID, errMsg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "complete failed", "message_id", messageID, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "completed")
	return nil
}

func (q *InstrumentedQueue) SendResponse(ctx context.Context, original Message, payload interface{}, artifactPath string) (string, error) {
	ctx, span := q.tracer.Start(ctx, "messagequeue.SendResponse", trace.WithAttributes(
		attribute.String("messagequeue.correlation_id", original.CorrelationID),
	))
	defer span.End()

	id, err := q.next.SendResponse(ctx, original, payload, artifactPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "send_response failed", "correlation_id", original.CorrelationID, "error", err)
		return "", err
	}
	span.SetStatus(codes.Ok, "responded")
	return id, nil
}

func (q *InstrumentedQueue) CleanupExpired(ctx context.Context) (int, error) {
	ctx, span := q.tracer.Start(ctx, "messagequeue.CleanupExpired")
	defer span.End()

	n, err := q.next.CleanupExpired(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if n > 0 {
		logger.L().InfoContext(ctx, "expired messages cleaned up", "count", n)
	}
	span.SetStatus(codes.Ok, "cleaned")
	return n, nil
}
