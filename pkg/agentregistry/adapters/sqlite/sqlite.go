// Package sqlite is the durable agentregistry.Registry backend.
package sqlite

import (
	"context"
	"time"

	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/agentregistry"
	"github.com/agentmesh/engine/pkg/errors"
	"gorm.io/gorm"
)

// Adapter implements agentregistry.Registry over internal/store.
type Adapter struct {
	store *store.Store
}

// New wraps st as an agentregistry.Registry.
func New(st *store.Store) *Adapter {
	return &Adapter{store: st}
}

func (a *Adapter) Heartbeat(ctx context.Context, agent, status, currentTask string) error {
	return a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var currentTaskPtr *string
		if currentTask != "" {
			currentTaskPtr = &currentTask
		}

		var existing store.AgentStatusRow
		err := tx.Where("agent_id = ?", agent).First(&existing).Error
		switch err {
		case nil:
			return tx.Model(&existing).Updates(map[string]interface{}{
				"status":         status,
				"current_task":   currentTaskPtr,
				"last_heartbeat": now,
			}).Error
		case gorm.ErrRecordNotFound:
			row := store.AgentStatusRow{
				AgentID:       agent,
				Status:        status,
				CurrentTask:   currentTaskPtr,
				LastHeartbeat: now,
			}
			return errors.Wrap(tx.Create(&row).Error, "failed to create agent status row")
		default:
			return errors.Wrap(err, "failed to look up agent status")
		}
	})
}

func (a *Adapter) Health(ctx context.Context, agent string) (agentregistry.AgentStatus, bool, error) {
	var row store.AgentStatusRow
	err := a.store.Read(ctx).Where("agent_id = ?", agent).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return agentregistry.AgentStatus{}, false, nil
	}
	if err != nil {
		return agentregistry.AgentStatus{}, false, errors.Wrap(err, "failed to read agent status")
	}
	return toStatus(row), true, nil
}

func (a *Adapter) ListAll(ctx context.Context) ([]string, error) {
	var rows []store.AgentStatusRow
	if err := a.store.Read(ctx).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list agents")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AgentID)
	}
	return ids, nil
}

func toStatus(row store.AgentStatusRow) agentregistry.AgentStatus {
	s := agentregistry.AgentStatus{
		AgentID:           row.AgentID,
		Status:            row.Status,
		LastHeartbeat:     row.LastHeartbeat,
		MessagesPending:   row.MessagesPending,
		MessagesProcessed: row.MessagesProcessed,
		ErrorCount:        row.ErrorCount,
	}
	if row.CurrentTask != nil {
		s.CurrentTask = *row.CurrentTask
	}
	return s
}
