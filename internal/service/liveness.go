package service

import (
	"log"
	"time"

	"github.com/parlor-social/realtime-hub/internal/model"
)

// runLiveness probes every registered connection on a fixed interval. A
// connection that never acked the previous probe is flagged and counted,
// not evicted; transient hiccups should not cost anyone their session.
// The websocket-level ping in the write pump covers dead-transport
// detection separately.
func (s *Service) runLiveness() {
	interval := s.cfg.Liveness.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.probeAll()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) probeAll() {
	stale := 0
	for _, c := range s.hub.Snapshot() {
		if !c.TakeAlive() {
			stale++
			log.Printf("Connection %s missed liveness probe", c.UserID())
		}
		s.push(c, model.LivenessProbeEvent{
			Type:      model.EventLivenessProbe,
			Timestamp: nowMillis(),
		})
	}
	s.metrics.LivenessStale(stale)
}
