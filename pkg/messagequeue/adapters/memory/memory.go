// Package memory is an in-process, map-backed messagequeue.Queue used only
// by this module's own contract tests, so the same suite pins Queue's
// semantics independent of SQLite.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentmesh/engine/pkg/messagequeue"
	"github.com/google/uuid"
)

type agentCounters struct {
	pending   int
	processed int
	errors    int
}

// Adapter is a sync.RWMutex-guarded map implementation of messagequeue.Queue.
type Adapter struct {
	mu            sync.RWMutex
	messages      map[string]*messagequeue.Message
	deliveries    map[string]map[string]bool // messageID -> set of agentID
	subscriptions map[string]map[string]bool // channel -> set of agentID
	counters      map[string]*agentCounters
	responseCorrs map[string]bool // correlation ids already used by a .response
	dlq           []messagequeue.Message
}

// New constructs an empty in-memory queue.
func New() *Adapter {
	return &Adapter{
		messages:      make(map[string]*messagequeue.Message),
		deliveries:    make(map[string]map[string]bool),
		subscriptions: make(map[string]map[string]bool),
		counters:      make(map[string]*agentCounters),
		responseCorrs: make(map[string]bool),
	}
}

// Subscribe records agentID as a subscriber of channel, the in-memory stand-in
// for the subscriptions registry the sqlite backend consults during broadcast
// fan-out.
func (a *Adapter) Subscribe(agentID, channel string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subscriptions[channel] == nil {
		a.subscriptions[channel] = make(map[string]bool)
	}
	a.subscriptions[channel][agentID] = true
}

func (a *Adapter) Send(_ context.Context, req messagequeue.SendRequest) (string, error) {
	if req.Priority < 1 || req.Priority > 10 {
		return "", messagequeue.ErrPriorityOutOfRange(req.Priority)
	}
	if _, err := json.Marshal(req.Payload); err != nil {
		return "", messagequeue.ErrPayloadNotSerializable(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if req.CorrelationID != "" && strings.HasSuffix(req.Type, ".response") {
		if a.responseCorrs[req.CorrelationID] {
			return "", messagequeue.ErrDuplicateResponseCorrelation(req.CorrelationID)
		}
		a.responseCorrs[req.CorrelationID] = true
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if req.TTL > 0 {
		t := now.Add(req.TTL)
		expiresAt = &t
	}

	id := uuid.NewString()
	msg := messagequeue.Message{
		ID:            id,
		Type:          req.Type,
		Version:       "1.0",
		Timestamp:     now,
		CorrelationID: req.CorrelationID,
		FromAgent:     req.From,
		ToAgent:       req.To,
		Channel:       req.Channel,
		Priority:      req.Priority,
		Payload:       req.Payload,
		Status:        messagequeue.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
	a.messages[id] = &msg

	if req.To != "" {
		a.counterFor(req.To).pending++
	}

	return id, nil
}

func (a *Adapter) Receive(_ context.Context, agentID string, channels []string, limit int, typeFilter string) ([]messagequeue.Message, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	channelSet := make(map[string]bool, len(channels))
	for _, c := range channels {
		channelSet[c] = true
	}

	now := time.Now().UTC()
	var out []messagequeue.Message
	for _, msg := range a.messages {
		if msg.Status != messagequeue.StatusPending {
			continue
		}
		if msg.ExpiresAt != nil && msg.ExpiresAt.Before(now) {
			continue
		}
		if typeFilter != "" && msg.Type != typeFilter {
			continue
		}

		if msg.ToAgent != "" {
			if msg.ToAgent != agentID {
				continue
			}
		} else {
			if !channelSet[msg.Channel] {
				continue
			}
			if !a.subscriptions[msg.Channel][agentID] {
				continue
			}
			if a.deliveries[msg.ID][agentID] {
				continue
			}
		}
		out = append(out, *msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Adapter) Claim(_ context.Context, agentID, messageID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, ok := a.messages[messageID]
	if !ok {
		return false, messagequeue.ErrMessageNotFound(messageID)
	}

	if msg.ToAgent != "" {
		if msg.Status != messagequeue.StatusPending {
			return false, nil
		}
		msg.Status = messagequeue.StatusProcessing
		msg.DeliveryCount++
		now := time.Now().UTC()
		msg.LastDeliveredAt = &now
		a.counterFor(msg.ToAgent).pending--
		return true, nil
	}

	if a.deliveries[messageID] == nil {
		a.deliveries[messageID] = make(map[string]bool)
	}
	if a.deliveries[messageID][agentID] {
		return false, nil
	}
	a.deliveries[messageID][agentID] = true
	return true, nil
}

func (a *Adapter) Complete(_ context.Context, messageID string, errMsg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, ok := a.messages[messageID]
	if !ok {
		return messagequeue.ErrMessageNotFound(messageID)
	}

	hasError := errMsg != ""
	if hasError {
		msg.Error = errMsg
		if msg.DeliveryCount < 3 {
			msg.Status = messagequeue.StatusPending
		} else {
			msg.Status = messagequeue.StatusFailed
		}
	} else {
		msg.Status = messagequeue.StatusDone
	}

	a.bump(msg.FromAgent, hasError)
	if msg.ToAgent != "" {
		a.bump(msg.ToAgent, hasError)
	}

	if hasError && msg.DeliveryCount >= 3 {
		a.dlq = append(a.dlq, *msg)
		delete(a.messages, messageID)
	}
	return nil
}

func (a *Adapter) SendResponse(ctx context.Context, original messagequeue.Message, payload interface{}, artifactPath string) (string, error) {
	if original.CorrelationID == "" {
		return "", messagequeue.ErrMissingCorrelationID(original.ID)
	}

	baseType := original.Type
	if idx := strings.LastIndex(baseType, "."); idx >= 0 {
		baseType = baseType[:idx]
	}
	responseType := baseType + ".response"

	effectivePayload := payload
	if artifactPath != "" {
		merged := map[string]interface{}{"artifact_path": artifactPath}
		if m, ok := payload.(map[string]interface{}); ok {
			for k, v := range m {
				merged[k] = v
			}
		} else {
			merged["payload"] = payload
		}
		effectivePayload = merged
	}

	return a.Send(ctx, messagequeue.SendRequest{
		From:          original.ToAgent,
		To:            original.FromAgent,
		Channel:       original.Channel,
		Type:          responseType,
		Payload:       effectivePayload,
		Priority:      original.Priority,
		CorrelationID: original.CorrelationID,
	})
}

func (a *Adapter) CleanupExpired(_ context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for id, msg := range a.messages {
		if msg.ExpiresAt != nil && !msg.ExpiresAt.After(now) {
			delete(a.messages, id)
			n++
		}
	}
	return n, nil
}

func (a *Adapter) counterFor(agentID string) *agentCounters {
	c, ok := a.counters[agentID]
	if !ok {
		c = &agentCounters{}
		a.counters[agentID] = c
	}
	return c
}

func (a *Adapter) bump(agentID string, hasError bool) {
	c := a.counterFor(agentID)
	c.processed++
	if hasError {
		c.errors++
	}
}
