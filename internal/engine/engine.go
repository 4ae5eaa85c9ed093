// Package engine implements the crowdfunding campaign engine: pledge
// lifecycle management, tiered phase capacity tracking, bank statement
// reconciliation and campaign renewal links.
package engine

import (
	"sync"
	"time"

	"github.com/civitas-coop/microfund/internal/service"
)

// Engine orchestrates all campaign operations over the storage contract.
type Engine struct {
	storage service.Storage
	now     func() time.Time

	// Batch operations are single-writer per campaign. Campaigns are
	// independent: a lock is never held across two campaigns.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a new engine with the given storage.
func New(storage service.Storage) *Engine {
	return NewWithClock(storage, time.Now)
}

// NewWithClock creates an engine with an injected clock, for tests.
func NewWithClock(storage service.Storage, now func() time.Time) *Engine {
	return &Engine{
		storage: storage,
		now:     now,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// lockCampaign serializes batch writers for one campaign and returns the
// unlock function.
func (e *Engine) lockCampaign(campaignID int64) func() {
	e.mu.Lock()
	lock, ok := e.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[campaignID] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
