package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Retention sweep runs daily; webhook events carry their own expiry timestamp.
const PurgeInterval = 24 * time.Hour

// Manager manages the global job queue and background tasks
type Manager struct {
	queue       *Queue
	purgeTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:  NewQueue(5),
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

	m.queue.Start()

	m.purgeTicker = time.NewTicker(PurgeInterval)
	m.wg.Add(1)
	go m.purgeWorker()

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

	if m.purgeTicker != nil {
		m.purgeTicker.Stop()
	}

	close(m.stopCh)
	m.queue.Stop()
	m.running = false
	m.wg.Wait()

	log.Info("[JobQueue Manager] Stopped")
}

// purgeWorker periodically enqueues a retention sweep for stored webhook events
func (m *Manager) purgeWorker() {
	defer m.wg.Done()

	// Sweep once on startup so a restarted instance catches up immediately.
	if _, err := m.queue.EnqueuePurgeWebhookEventsJob(context.Background()); err != nil {
		log.Errorf("[JobQueue Manager] Failed to enqueue initial purge job: %v", err)
	}

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.purgeTicker.C:
			if _, err := m.queue.EnqueuePurgeWebhookEventsJob(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Failed to enqueue purge job: %v", err)
			}
		}
	}
}
