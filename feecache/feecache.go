// Package feecache implements external.PrioritizationFeeCache: an LRU of
// recently committed fees, keyed by account, that the Scheduler consults as
// a priority hint (spec §4.8 step 3, §5 "shared-read/exclusive-write lock").
package feecache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/vivekjami/banking-stage/external"
)

// DefaultCapacity bounds how many accounts' fee observations the cache
// retains.
const DefaultCapacity = 50_000

// Cache is a bounded, per-account highest-recent-fee tracker.
type Cache struct {
	mu  sync.RWMutex
	lru *lru.Cache
}

// New returns an empty Cache with the given capacity.
func New(capacity int) *Cache {
	c, err := lru.New(capacity)
	if err != nil {
		// Only fails for a non-positive capacity.
		panic(err)
	}
	return &Cache{lru: c}
}

// Update records the fee-per-compute-unit of every committed transaction
// against each of its writable accounts (spec §4.8 step 3). Concurrent with
// EstimateFee under the cache's read/write lock; this is the exclusive-write
// side.
func (c *Cache) Update(committed []external.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tx := range committed {
		fee := tx.FeePerComputeUnit()
		if fee == 0 {
			continue
		}
		for _, acc := range tx.WritableAccounts() {
			accFee := fee
			if v, found := c.lru.Peek(acc); found && v.(uint64) > accFee {
				accFee = v.(uint64)
			}
			c.lru.Add(acc, accFee)
		}
	}
}

// EstimateFee returns the highest recently observed fee-per-compute-unit
// across accounts, or ok=false if none of them have been observed.
func (c *Cache) EstimateFee(accounts []external.AccountID) (feePerCU uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, acc := range accounts {
		v, found := c.lru.Get(acc)
		if !found {
			continue
		}
		fee := v.(uint64)
		if fee > feePerCU {
			feePerCU = fee
		}
		ok = true
	}
	return feePerCU, ok
}
