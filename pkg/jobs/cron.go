package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job names
const (
	JobSubscriptionSync = "subscription-sync"
	JobVisitorCleanup   = "visitor-cleanup"
	JobDBStats          = "db-stats"
	JobTicketArchive    = "ticket-archive"
)

// SubscriptionSyncer re-reads subscriptions from the payment provider
type SubscriptionSyncer interface {
	SyncSubscriptions(ctx context.Context) (int, error)
}

// TicketArchiver uploads ticket exports to long-term storage
type TicketArchiver interface {
	ArchiveTickets(ctx context.Context) (int, error)
}

// VisitorCleaner drops idle rate-limit buckets
type VisitorCleaner interface {
	Cleanup(now time.Time) int
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron   *cron.Cron
	jobs   map[string]func()
	logger *log.Logger
}

// NewCronManager creates a new cron manager.
// A job still running when its next tick fires is skipped, and panics are recovered.
func NewCronManager(logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	cronLogger := cron.PrintfLogger(logger)
	return &CronManager{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		jobs:   make(map[string]func()),
		logger: logger,
	}
}

func (cm *CronManager) add(name, spec string, fn func()) error {
	if _, err := cm.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	cm.jobs[name] = fn
	cm.logger.Printf("  - %s: %s", name, spec)
	return nil
}

// AddSubscriptionSync schedules the nightly reconciliation with the payment provider
func (cm *CronManager) AddSubscriptionSync(spec string, syncer SubscriptionSyncer) error {
	return cm.add(JobSubscriptionSync, spec, func() {
		cm.logger.Println("🕐 Running subscription sync job...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		n, err := syncer.SyncSubscriptions(ctx)
		if err != nil {
			cm.logger.Printf("❌ Subscription sync failed after %d organizations: %v", n, err)
			return
		}
		cm.logger.Printf("✅ Subscription sync completed: %d organizations updated", n)
	})
}

// AddTicketArchive schedules the upload of every organization's ticket export
func (cm *CronManager) AddTicketArchive(spec string, archiver TicketArchiver) error {
	return cm.add(JobTicketArchive, spec, func() {
		cm.logger.Println("🗄️ Running ticket archive job...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		n, err := archiver.ArchiveTickets(ctx)
		if err != nil {
			cm.logger.Printf("⚠️ Ticket archive finished with errors (%d uploaded): %v", n, err)
			return
		}
		cm.logger.Printf("✅ Ticket archive completed: %d exports uploaded", n)
	})
}

// AddVisitorCleanup schedules removal of idle rate-limit buckets
func (cm *CronManager) AddVisitorCleanup(spec string, cleaner VisitorCleaner) error {
	return cm.add(JobVisitorCleanup, spec, func() {
		if n := cleaner.Cleanup(time.Now()); n > 0 {
			cm.logger.Printf("🧹 Removed %d idle rate-limit visitors", n)
		}
	})
}

// AddDBStats schedules a periodic report of open database connections
func (cm *CronManager) AddDBStats(spec string, report func()) error {
	return cm.add(JobDBStats, spec, report)
}

// RunNow runs a scheduled job synchronously
func (cm *CronManager) RunNow(name string) error {
	fn, ok := cm.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	fn()
	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
		cm.logger.Println("⚠️ Cron jobs still running at shutdown")
	}
}
