// Package store is the embedded relational backing shared by every
// component. It owns the single SQLite file, its schema, and the two
// connection pools (write and read) that give the engine its concurrency
// model: a pinned single-connection write pool running BEGIN IMMEDIATE
// transactions, and a larger read pool for lock-free WAL reads.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agentmesh/engine/pkg/concurrency"
	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/events"
	eventsmemory "github.com/agentmesh/engine/pkg/events/adapters/memory"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultChannels are seeded at init time with subscriber "system".
var DefaultChannels = []string{"general", "urgent", "technical", "review"}

// ProtocolVersion is written once to protocol_version.txt at init.
const ProtocolVersion = "1.0"

// Config controls where the store's files live and how its connections
// behave. RootDir mirrors the on-disk layout rooted at <project>/.claude.
type Config struct {
	RootDir       string `env:"AGENTMESH_ROOT" env-default:".claude"`
	BusyTimeoutMS int    `env:"AGENTMESH_BUSY_TIMEOUT_MS" env-default:"10000"`
}

// Store is the handle every component is constructed with. There is no
// package-level global state: callers own the Store's lifetime via Open/Close.
type Store struct {
	cfg   Config
	write *gorm.DB
	read  *gorm.DB
	wmu   *concurrency.SmartMutex
	bus   events.Bus

	communicationsDir string
	votesDir          string
	artifactsDir      string
}

// Events returns the store's in-process lifecycle bus. Distinct from the
// durable MessageQueue: topics here (store.migrated, store.busy_retry) never
// leave the process and are never persisted.
func (s *Store) Events() events.Bus { return s.bus }

// Open creates (or attaches to) the store file under cfg.RootDir, running
// idempotent schema initialization and default-channel seeding.
func Open(cfg Config) (*Store, error) {
	if cfg.RootDir == "" {
		cfg.RootDir = ".claude"
	}
	if cfg.BusyTimeoutMS <= 0 {
		cfg.BusyTimeoutMS = 10000
	}

	communicationsDir := filepath.Join(cfg.RootDir, "communications")
	votesDir := filepath.Join(cfg.RootDir, "votes")
	artifactsDir := filepath.Join(cfg.RootDir, "artifacts")
	for _, dir := range []string{communicationsDir, votesDir, artifactsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Internal("failed to create engine directory "+dir, err)
		}
	}

	dbPath := filepath.Join(communicationsDir, "messages.db")

	writeDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		dbPath, cfg.BusyTimeoutMS)
	readDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		dbPath, cfg.BusyTimeoutMS)

	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	write, err := gorm.Open(sqlite.Open(writeDSN), gcfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open write connection")
	}
	writeSQL, err := write.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying write sql.DB")
	}
	// A single open connection is what serializes writers: database/sql
	// queues callers for the one connection, and the _txlock=immediate DSN
	// parameter makes every transaction on it a BEGIN IMMEDIATE.
	writeSQL.SetMaxOpenConns(1)

	read, err := gorm.Open(sqlite.Open(readDSN), gcfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open read connection")
	}
	readSQL, err := read.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying read sql.DB")
	}
	readSQL.SetMaxOpenConns(runtime.GOMAXPROCS(0) * 4)

	s := &Store{
		cfg:               cfg,
		write:             write,
		read:              read,
		wmu:               concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "store.write", DebugMode: true}),
		bus:               eventsmemory.New(),
		communicationsDir: communicationsDir,
		votesDir:          votesDir,
		artifactsDir:      artifactsDir,
	}

	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.writeProtocolVersion(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.seedDefaultChannels(); err != nil {
		_ = s.Close()
		return nil, err
	}

	_ = s.bus.Publish(context.Background(), "store.migrated", events.Event{
		Type:   "store.migrated",
		Source: "internal/store",
	})

	return s, nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	var firstErr error
	if s.write != nil {
		if sqlDB, err := s.write.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if s.read != nil {
		if sqlDB, err := s.read.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return errors.Wrap(firstErr, "failed to close store")
	}
	return nil
}

// VotesDir is where VotingLayer persists ballot documents.
func (s *Store) VotesDir() string { return s.votesDir }

// ArtifactsDir is where large payload blobs may be referenced by path.
func (s *Store) ArtifactsDir() string { return s.artifactsDir }

// Read returns the read pool's gorm.DB bound to ctx, for lock-free queries.
func (s *Store) Read(ctx context.Context) *gorm.DB {
	return s.read.WithContext(ctx)
}

// WithImmediate runs fn inside a single BEGIN IMMEDIATE transaction on the
// write pool. The SmartMutex wrap is pure observability (slow-write
// logging); SQLite plus the single-connection write pool already
// serializes callers, so the mutex does not change correctness.
func (s *Store) WithImmediate(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	err := s.write.WithContext(ctx).Transaction(fn)
	if err != nil {
		if isBusyErr(err) {
			_ = s.bus.Publish(ctx, "store.busy_retry", events.Event{
				Type:   "store.busy_retry",
				Source: "internal/store",
			})
			return errors.Unavailable("store busy: write lock not acquired before timeout", err)
		}
		return err
	}
	return nil
}

func (s *Store) writeProtocolVersion() error {
	path := filepath.Join(s.communicationsDir, "protocol_version.txt")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(ProtocolVersion+"\n"), 0o644)
}

func (s *Store) seedDefaultChannels() error {
	return s.WithImmediate(context.Background(), func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, ch := range DefaultChannels {
			sub := ChannelSubscription{ChannelName: ch, AgentID: "system", SubscribedAt: now}
			if err := tx.Where(ChannelSubscription{ChannelName: ch, AgentID: "system"}).
				FirstOrCreate(&sub).Error; err != nil {
				return errors.Wrap(err, "failed to seed default channel "+ch)
			}
		}
		return nil
	})
}

// isBusyErr reports whether err is SQLite's SQLITE_BUSY surfaced through the
// driver after the busy-timeout elapsed.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"database is locked", "SQLITE_BUSY", "database table is locked"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
