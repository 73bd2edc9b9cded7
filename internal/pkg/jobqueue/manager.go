package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/checkout"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/contracts"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
	metrics "github.com/beatmarkt/BeatMarkt/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue               *Queue
	lockSweepTicker     *time.Ticker
	emailRecoveryTicker *time.Ticker
	counterFlushTicker  *time.Ticker
	stopCh              chan struct{}
	wg                  sync.WaitGroup
	mu                  sync.Mutex
	running             bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "5")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	cfg := config.Get()

	// Abandoned checkout locks are swept on a fixed cadence
	m.lockSweepTicker = time.NewTicker(cfg.Checkout.LockSweepInterval)
	m.wg.Add(1)
	go m.lockSweepWorker(cfg.Checkout.LockMaxAge)

	// Contract emails whose claim died mid-send get re-enqueued
	m.emailRecoveryTicker = time.NewTicker(cfg.Contracts.EmailSweepInterval)
	m.wg.Add(1)
	go m.emailRecoveryWorker(cfg.Contracts.EmailLeaseTimeout)

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.lockSweepTicker != nil {
		m.lockSweepTicker.Stop()
	}
	if m.emailRecoveryTicker != nil {
		m.emailRecoveryTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// lockSweepWorker periodically deletes beat locks whose checkout went
// nowhere so exclusive beats do not stay reserved forever.
func (m *Manager) lockSweepWorker(maxAge time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started lock sweep worker (maxAge: %s)", maxAge)

	locks := checkout.NewLockManager(database.GetDB())
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Lock sweep worker stopping")
			return
		case <-m.lockSweepTicker.C:
			if _, err := locks.SweepAbandoned(maxAge); err != nil {
				log.Errorf("[JobQueue Manager] Lock sweep error: %v", err)
			}
		}
	}
}

// emailRecoveryWorker re-enqueues contract email jobs for purchases whose
// send claim died mid-flight.
func (m *Manager) emailRecoveryWorker(leaseTimeout time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started contract email recovery worker (lease timeout: %s)", leaseTimeout)

	lease := contracts.NewEmailLease(database.GetDB(), leaseTimeout)
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Contract email recovery worker stopping")
			return
		case <-m.emailRecoveryTicker.C:
			ids, err := lease.RecoverStale()
			if err != nil {
				log.Errorf("[JobQueue Manager] Contract email recovery error: %v", err)
				continue
			}
			for _, purchaseID := range ids {
				if _, err := m.queue.EnqueueContractEmail(purchaseID, ""); err != nil {
					log.Errorf("[JobQueue Manager] Could not re-enqueue contract email for purchase %d: %v", purchaseID, err)
				}
			}
		}
	}
}

// counterFlushWorker periodically flushes play and download counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
