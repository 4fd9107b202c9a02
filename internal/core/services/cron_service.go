package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// refreshTimeout bounds a single status refresh run
const refreshTimeout = 5 * time.Minute

// CronService runs the periodic status refresh so persisted caches do not
// go stale between writes
type CronService struct {
	cron    *cron.Cron
	members *MemberService
	spec    string
	wg      sync.WaitGroup
}

// NewCronService creates a new cron service. spec is a standard 5-field cron expression.
func NewCronService(members *MemberService, spec string, loc *time.Location) (*CronService, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &CronService{
		cron:    cron.New(cron.WithLocation(loc)),
		members: members,
		spec:    spec,
	}
	if _, err := s.cron.AddFunc(spec, s.RunStatusRefresh); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the scheduler and runs one refresh right away
func (s *CronService) Start() {
	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunStatusRefresh()
	}()
	log.Printf("🚀 CronService started [status refresh: %s]", s.spec)
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("🛑 CronService stopped")
}

// RunStatusRefresh recomputes all member statuses once
func (s *CronService) RunStatusRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	started := time.Now()
	changed, err := s.members.RefreshStatuses(ctx)
	if err != nil {
		log.Printf("❌ Status refresh failed: %v", err)
		return
	}
	log.Printf("✅ Status refresh completed: %d changed (%s)", changed, time.Since(started).Round(time.Millisecond))
}
