package jobs

import (
	"log"
	"time"

	"github.com/lolakitchen/chowbot-backend/internal/services"
)

// SessionCleanupJob periodically sweeps expired sessions and releases any
// payment timers still tied to them.
type SessionCleanupJob struct {
	sessions  *services.SessionManager
	monitor   *services.PaymentMonitor
	interval  time.Duration
	isRunning bool
	stopCh    chan struct{}
}

// NewSessionCleanupJob creates the cleanup job
func NewSessionCleanupJob(sessions *services.SessionManager, monitor *services.PaymentMonitor) *SessionCleanupJob {
	return &SessionCleanupJob{
		sessions: sessions,
		monitor:  monitor,
		interval: 5 * time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (j *SessionCleanupJob) Start() {
	if j.isRunning {
		return
	}
	j.isRunning = true

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		log.Println("🧹 Session cleanup job started")
		for {
			select {
			case <-ticker.C:
				swept := j.sessions.SweepExpired()
				for _, phone := range swept {
					j.monitor.CancelTimerFor(phone)
				}
			case <-j.stopCh:
				log.Println("Session cleanup job stopped")
				return
			}
		}
	}()
}

// Stop halts the sweep loop
func (j *SessionCleanupJob) Stop() {
	if !j.isRunning {
		return
	}
	j.isRunning = false
	close(j.stopCh)
}
