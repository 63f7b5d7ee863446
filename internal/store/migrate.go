package store

import (
	"github.com/agentmesh/engine/pkg/errors"
)

// migrate creates every table via AutoMigrate, then adds the partial and
// partial-unique indexes the fan-out/claim/response queries need, which GORM
// struct tags cannot express, via raw SQL executed on the write handle.
func (s *Store) migrate() error {
	if err := s.write.AutoMigrate(
		&Message{},
		&ChannelSubscription{},
		&AgentStatusRow{},
		&MessageDelivery{},
		&DeadLetter{},
		&JobBoardTask{},
	); err != nil {
		return errors.Wrap(err, "schema migration failed")
	}

	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_messages_pending_fanout
			ON messages(channel, status, priority DESC, timestamp)
			WHERE status = 'pending'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_response_correlation
			ON messages(correlation_id)
			WHERE type LIKE '%.response'`,
		`CREATE INDEX IF NOT EXISTS idx_messages_expires_at
			ON messages(expires_at)
			WHERE expires_at IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_job_board_open_priority
			ON job_board(status, priority DESC)
			WHERE status = 'open'`,
	}

	for _, stmt := range statements {
		if err := s.write.Exec(stmt).Error; err != nil {
			return errors.Wrap(err, "failed to create index")
		}
	}

	return nil
}
