// Package sqlite is the durable subscriptions.Registry backend.
package sqlite

import (
	"context"
	"sort"
	"time"

	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/validator"
	"gorm.io/gorm"
)

// Adapter implements subscriptions.Registry over internal/store. Channel
// names and agent ids are slug-validated at subscribe time, since both are
// interpolated into queries and broadcast fan-out joins from here on.
type Adapter struct {
	store *store.Store
	valid *validator.Validator
}

// New wraps st as a subscriptions.Registry.
func New(st *store.Store) *Adapter {
	return &Adapter{store: st, valid: validator.New()}
}

func (a *Adapter) Subscribe(ctx context.Context, agent, channel string) error {
	if err := a.valid.ValidateVar(channel, "required,slug"); err != nil {
		return errors.InvalidArgument("channel name must be a lowercase slug: "+channel, err)
	}
	if err := a.valid.ValidateVar(agent, "required,slug"); err != nil {
		return errors.InvalidArgument("agent id must be a lowercase slug: "+agent, err)
	}
	return a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		row := store.ChannelSubscription{ChannelName: channel, AgentID: agent, SubscribedAt: time.Now().UTC()}
		if err := tx.Where(store.ChannelSubscription{ChannelName: channel, AgentID: agent}).
			FirstOrCreate(&row).Error; err != nil {
			return errors.Wrap(err, "failed to subscribe")
		}
		return nil
	})
}

func (a *Adapter) Unsubscribe(ctx context.Context, agent, channel string) error {
	return a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("channel_name = ? AND agent_id = ?", channel, agent).
			Delete(&store.ChannelSubscription{}).Error; err != nil {
			return errors.Wrap(err, "failed to unsubscribe")
		}
		return nil
	})
}

func (a *Adapter) ChannelsOf(ctx context.Context, agent string) ([]string, error) {
	var rows []store.ChannelSubscription
	if err := a.store.Read(ctx).Where("agent_id = ?", agent).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list channels")
	}
	channels := make([]string, 0, len(rows))
	for _, r := range rows {
		channels = append(channels, r.ChannelName)
	}
	sort.Strings(channels)
	return channels, nil
}
