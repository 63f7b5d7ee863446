// Package sqlite is the durable messagequeue.Queue backend, built directly
// on internal/store's write/read pool pair.
package sqlite

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/messagequeue"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Adapter implements messagequeue.Queue over internal/store.
type Adapter struct {
	store *store.Store
}

// New wraps st as a messagequeue.Queue.
func New(st *store.Store) *Adapter {
	return &Adapter{store: st}
}

func (a *Adapter) Send(ctx context.Context, req messagequeue.SendRequest) (string, error) {
	var id string
	err := a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		var err error
		id, err = SendWithTx(tx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SendWithTx performs Send's insert logic against an already-open write
// transaction. JobBoard uses this to emit its coordinating messages
// (task.claimed, task.update) in the exact same transaction as the task row
// mutation that triggered them, honoring the transactional-consistency
// requirement between the task board and the message bus. VotingLayer does
// not use it: its ballots live in files, and it sends its vote.* messages
// through messagequeue.Queue.Send.
func SendWithTx(tx *gorm.DB, req messagequeue.SendRequest) (string, error) {
	if req.Priority < 1 || req.Priority > 10 {
		return "", messagequeue.ErrPriorityOutOfRange(req.Priority)
	}

	payloadBytes, err := json.Marshal(req.Payload)
	if err != nil {
		return "", messagequeue.ErrPayloadNotSerializable(err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	var expiresAt *time.Time
	if req.TTL > 0 {
		t := now.Add(req.TTL)
		expiresAt = &t
	}
	var toAgent *string
	if req.To != "" {
		toAgent = &req.To
	}
	var correlationID *string
	if req.CorrelationID != "" {
		correlationID = &req.CorrelationID
	}

	row := store.Message{
		ID:            id,
		Type:          req.Type,
		Version:       store.ProtocolVersion,
		Timestamp:     now,
		CorrelationID: correlationID,
		FromAgent:     req.From,
		ToAgent:       toAgent,
		Channel:       req.Channel,
		Priority:      req.Priority,
		Payload:       string(payloadBytes),
		Status:        messagequeue.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}

	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return "", messagequeue.ErrDuplicateResponseCorrelation(req.CorrelationID)
		}
		return "", errors.Wrap(err, "failed to insert message")
	}
	if toAgent != nil {
		if err := ensureAgentRow(tx, *toAgent, now); err != nil {
			return "", err
		}
		if err := tx.Model(&store.AgentStatusRow{}).Where("agent_id = ?", *toAgent).
			UpdateColumn("messages_pending", gorm.Expr("messages_pending + 1")).Error; err != nil {
			return "", errors.Wrap(err, "failed to bump messages_pending")
		}
	}
	return id, nil
}

func (a *Adapter) Receive(ctx context.Context, agentID string, channels []string, limit int, typeFilter string) ([]messagequeue.Message, error) {
	now := time.Now().UTC()
	db := a.store.Read(ctx)

	var candidates []store.Message

	direct := db.Model(&store.Message{}).
		Where("status = ?", messagequeue.StatusPending).
		Where("to_agent = ?", agentID).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if typeFilter != "" {
		direct = direct.Where("type = ?", typeFilter)
	}
	var directRows []store.Message
	if err := direct.Find(&directRows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query direct messages")
	}
	candidates = append(candidates, directRows...)

	if len(channels) > 0 {
		broadcast := db.Model(&store.Message{}).
			Where("status = ?", messagequeue.StatusPending).
			Where("to_agent IS NULL").
			Where("channel IN ?", channels).
			Where("expires_at IS NULL OR expires_at > ?", now).
			Where("EXISTS (SELECT 1 FROM channel_subscriptions cs WHERE cs.channel_name = messages.channel AND cs.agent_id = ?)", agentID).
			Where("id NOT IN (SELECT message_id FROM message_deliveries WHERE agent_id = ?)", agentID)
		if typeFilter != "" {
			broadcast = broadcast.Where("type = ?", typeFilter)
		}
		var broadcastRows []store.Message
		if err := broadcast.Find(&broadcastRows).Error; err != nil {
			return nil, errors.Wrap(err, "failed to query broadcast messages")
		}
		candidates = append(candidates, broadcastRows...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]messagequeue.Message, 0, len(candidates))
	for _, row := range candidates {
		out = append(out, toMessage(row))
	}
	return out, nil
}

func (a *Adapter) Claim(ctx context.Context, agentID, messageID string) (bool, error) {
	var msg store.Message
	if err := a.store.Read(ctx).First(&msg, "id = ?", messageID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, messagequeue.ErrMessageNotFound(messageID)
		}
		return false, errors.Wrap(err, "failed to look up message")
	}

	won := false
	err := a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if msg.ToAgent != nil && *msg.ToAgent != "" {
			res := tx.Model(&store.Message{}).
				Where("id = ? AND status = ?", messageID, messagequeue.StatusPending).
				Updates(map[string]interface{}{
					"status":            messagequeue.StatusProcessing,
					"delivery_count":    gorm.Expr("delivery_count + 1"),
					"last_delivered_at": now,
				})
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to claim direct message")
			}
			if res.RowsAffected == 1 {
				won = true
				if err := tx.Model(&store.AgentStatusRow{}).Where("agent_id = ?", *msg.ToAgent).
					UpdateColumn("messages_pending", gorm.Expr("messages_pending - 1")).Error; err != nil {
					return errors.Wrap(err, "failed to decrement messages_pending")
				}
			}
			return nil
		}

		delivery := store.MessageDelivery{MessageID: messageID, AgentID: agentID, DeliveredAt: now}
		if err := tx.Create(&delivery).Error; err != nil {
			if isUniqueViolation(err) {
				won = false
				return nil
			}
			return errors.Wrap(err, "failed to claim broadcast message")
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (a *Adapter) Complete(ctx context.Context, messageID string, errMsg string) error {
	return a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		var msg store.Message
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return messagequeue.ErrMessageNotFound(messageID)
			}
			return errors.Wrap(err, "failed to look up message")
		}

		hasError := errMsg != ""
		status := messagequeue.StatusDone
		var errPtr *string
		if hasError {
			errPtr = &errMsg
			// Under the delivery-count threshold, return the message to
			// pending so a subsequent claim can retry it; only at the
			// threshold does it become terminally failed (and archived).
			if msg.DeliveryCount < 3 {
				status = messagequeue.StatusPending
			} else {
				status = messagequeue.StatusFailed
			}
		}

		if err := tx.Model(&store.Message{}).Where("id = ?", messageID).
			Updates(map[string]interface{}{"status": status, "error": errPtr}).Error; err != nil {
			return errors.Wrap(err, "failed to mark message complete")
		}

		if err := bumpAgentCounters(tx, msg.FromAgent, hasError); err != nil {
			return err
		}
		if msg.ToAgent != nil && *msg.ToAgent != "" {
			if err := bumpAgentCounters(tx, *msg.ToAgent, hasError); err != nil {
				return err
			}
		}

		if hasError && msg.DeliveryCount >= 3 {
			snapshot, _ := json.Marshal(msg)
			dl := store.DeadLetter{
				ID:              msg.ID,
				OriginalMessage: string(snapshot),
				Error:           errMsg,
				MovedAt:         time.Now().UTC(),
				RetryCount:      msg.DeliveryCount,
			}
			if err := tx.Create(&dl).Error; err != nil {
				return errors.Wrap(err, "failed to archive dead letter")
			}
			if err := tx.Delete(&store.Message{}, "id = ?", msg.ID).Error; err != nil {
				return errors.Wrap(err, "failed to delete archived message")
			}
		}
		return nil
	})
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

func (a *Adapter) CleanupExpired(ctx context.Context) (int, error) {
	var n int
	err := a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		res := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC()).Delete(&store.Message{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to delete expired messages")
		}
		n = int(res.RowsAffected)
		return nil
	})
	return n, err
}

func ensureAgentRow(tx *gorm.DB, agentID string, now time.Time) error {
	row := store.AgentStatusRow{AgentID: agentID, Status: "active", LastHeartbeat: now}
	return tx.Where(store.AgentStatusRow{AgentID: agentID}).FirstOrCreate(&row).Error
}

func bumpAgentCounters(tx *gorm.DB, agentID string, hasError bool) error {
	updates := map[string]interface{}{"messages_processed": gorm.Expr("messages_processed + 1")}
	if hasError {
		updates["error_count"] = gorm.Expr("error_count + 1")
	}
	return tx.Model(&store.AgentStatusRow{}).Where("agent_id = ?", agentID).Updates(updates).Error
}

func toMessage(row store.Message) messagequeue.Message {
	m := messagequeue.Message{
		ID:              row.ID,
		Type:            row.Type,
		Version:         row.Version,
		Timestamp:       row.Timestamp,
		FromAgent:       row.FromAgent,
		Channel:         row.Channel,
		Priority:        row.Priority,
		Status:          row.Status,
		CreatedAt:       row.CreatedAt,
		ExpiresAt:       row.ExpiresAt,
		DeliveryCount:   row.DeliveryCount,
		LastDeliveredAt: row.LastDeliveredAt,
	}
	if row.ToAgent != nil {
		m.ToAgent = *row.ToAgent
	}
	if row.CorrelationID != nil {
		m.CorrelationID = *row.CorrelationID
	}
	if row.Error != nil {
		m.Error = *row.Error
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(row.Payload), &decoded); err != nil {
		m.Payload = map[string]string{"_decode_error": err.Error()}
	} else {
		m.Payload = decoded
	}
	return m
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
