// Package store keeps an append-only journal of resolved turns. Rooms are never
// rebuilt from it; it exists for operators looking back at finished matches.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
)

var ErrJournalFull = errors.New("journal buffer full")
var ErrJournalClosed = errors.New("journal closed")
var ErrJournalDisabled = errors.New("turn journal disabled")

type TurnRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"index;not null"`
	TurnCount int    `gorm:"not null"`
	Seat      int
	PlayerID  string
	Forced    bool
	Battle    string `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func NewTurnRecord(roomID string, turn int, seat engine.Seat, playerID string, forced bool, report *engine.BattleReport, at time.Time) (TurnRecord, error) {
	rec := TurnRecord{
		RoomID:    roomID,
		TurnCount: turn,
		Seat:      int(seat),
		PlayerID:  playerID,
		Forced:    forced,
		CreatedAt: at,
		Battle:    "null",
	}
	if report != nil {
		b, err := json.Marshal(report)
		if err != nil {
			return TurnRecord{}, fmt.Errorf("encode battle report: %w", err)
		}
		rec.Battle = string(b)
	}
	return rec, nil
}

type Journal interface {
	RecordTurn(ctx context.Context, rec TurnRecord) error
	Close() error
}

// TurnLog reads the journal back.
type TurnLog interface {
	Turns(ctx context.Context, roomID string) ([]TurnRecord, error)
}

type Nop struct{}

func (Nop) RecordTurn(context.Context, TurnRecord) error { return nil }
func (Nop) Close() error                                 { return nil }

func (Nop) Turns(context.Context, string) ([]TurnRecord, error) {
	return nil, ErrJournalDisabled
}

type GormJournal struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*GormJournal, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormJournal(db)
}

func NewGormJournal(db *gorm.DB) (*GormJournal, error) {
	if err := db.AutoMigrate(&TurnRecord{}); err != nil {
		return nil, fmt.Errorf("migrate turn records: %w", err)
	}
	return &GormJournal{db: db}, nil
}

func (j *GormJournal) RecordTurn(ctx context.Context, rec TurnRecord) error {
	return j.db.WithContext(ctx).Create(&rec).Error
}

// Turns lists a room's journal in turn order.
func (j *GormJournal) Turns(ctx context.Context, roomID string) ([]TurnRecord, error) {
	var out []TurnRecord
	err := j.db.WithContext(ctx).Where("room_id = ?", roomID).Order("turn_count").Find(&out).Error
	return out, err
}

func (j *GormJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Async hands records to a background writer so callers never wait on the
// database. Records are dropped when the buffer is full.
type Async struct {
	next   Journal
	log    *zap.Logger
	ch     chan TurnRecord
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Journal, buffer int, log *zap.Logger) *Async {
	a := &Async{
		next: next,
		log:  log,
		ch:   make(chan TurnRecord, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for rec := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.next.RecordTurn(ctx, rec); err != nil {
			a.log.Warn("journal write failed",
				zap.String("room_id", rec.RoomID),
				zap.Int("turn", rec.TurnCount),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (a *Async) RecordTurn(_ context.Context, rec TurnRecord) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrJournalClosed
	}
	select {
	case a.ch <- rec:
		return nil
	default:
		a.log.Warn("journal buffer full, dropping record", zap.String("room_id", rec.RoomID))
		return ErrJournalFull
	}
}

// Close drains pending records and closes the underlying journal.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
