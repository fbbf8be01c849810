package services

import (
	"log"
	"sync"
	"time"
)

const defaultSweepInterval = 10 * time.Minute

// IdleEvicter is satisfied by *quiz.Registry.
type IdleEvicter interface {
	EvictIdle(cutoff time.Time) int
	Len() int
}

// SessionJanitor periodically drops quiz sessions that have not been used
// for longer than the idle TTL.
type SessionJanitor struct {
	sessions IdleEvicter
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewSessionJanitor(sessions IdleEvicter, idleTTL time.Duration) *SessionJanitor {
	return &SessionJanitor{
		sessions: sessions,
		idleTTL:  idleTTL,
		interval: defaultSweepInterval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

func (j *SessionJanitor) Start() {
	if j.sessions == nil || j.idleTTL <= 0 {
		return
	}

	go j.loop()
	log.Printf("Session janitor started (idle TTL %s)", j.idleTTL)
}

func (j *SessionJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

func (j *SessionJanitor) loop() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SessionJanitor) sweep() int {
	n := j.sessions.EvictIdle(j.now().Add(-j.idleTTL))
	if n > 0 {
		log.Printf("session janitor: evicted %d idle sessions, %d remain", n, j.sessions.Len())
	}
	return n
}
