package workers

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/metrics"
	"github.com/saldanamusic/splitsheets/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	baseBackoff = 30 * time.Second
	maxBackoff  = time.Hour

	// claimLease is how long a claimed row is hidden from other dispatchers
	// while it is being sent.
	claimLease = 5 * time.Minute

	defaultBatchSize = 50
	sendTimeout      = 30 * time.Second
	maxErrorBytes    = 1024
)

// Backoff returns the delay before retry number attempt (1-based): 30s
// doubling per attempt, capped at one hour.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// DispatchStats summarizes one dispatch pass.
type DispatchStats struct {
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}

// OutboxDispatcher is a background worker that delivers queued notifications.
type OutboxDispatcher struct {
	db          *gorm.DB
	sender      mailer.Sender
	log         *zap.Logger
	interval    time.Duration
	maxAttempts int
	batchSize   int
	now         func() time.Time
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewOutboxDispatcher creates a dispatcher that polls every interval and
// gives up on a message after maxAttempts failed sends.
func NewOutboxDispatcher(db *gorm.DB, sender mailer.Sender, log *zap.Logger, interval time.Duration, maxAttempts int) *OutboxDispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &OutboxDispatcher{
		db:          db,
		sender:      sender,
		log:         log.Named("outbox"),
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   defaultBatchSize,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background dispatch loop.
func (w *OutboxDispatcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("outbox dispatcher started",
		zap.Duration("interval", w.interval),
		zap.Int("max_attempts", w.maxAttempts))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *OutboxDispatcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("outbox dispatcher stopped")
}

func (w *OutboxDispatcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.dispatch()
		}
	}
}

func (w *OutboxDispatcher) dispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stats, err := w.RunOnce(ctx)
	if err != nil {
		w.log.Error("outbox dispatch failed", zap.Error(err))
		return
	}
	if stats.Sent+stats.Retried+stats.Failed > 0 {
		w.log.Info("outbox dispatched",
			zap.Int("sent", stats.Sent),
			zap.Int("retried", stats.Retried),
			zap.Int("failed", stats.Failed))
	}
}

// RunOnce delivers every notification that is due now, one batch at a time.
func (w *OutboxDispatcher) RunOnce(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	db := w.db.WithContext(ctx).Session(&gorm.Session{Logger: w.db.Logger.LogMode(logger.Silent)})

	for {
		var due []models.Notification
		err := db.Where("status = ? AND next_attempt_at <= ?", models.NotificationPending, w.now().UTC()).
			Order("next_attempt_at ASC, id ASC").
			Limit(w.batchSize).
			Find(&due).Error
		if err != nil {
			return stats, err
		}
		if len(due) == 0 {
			return stats, nil
		}

		for i := range due {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			claimed, err := w.claim(db, &due[i])
			if err != nil {
				return stats, err
			}
			if !claimed {
				continue
			}
			if err := w.deliver(ctx, db, &due[i], &stats); err != nil {
				return stats, err
			}
		}

		if len(due) < w.batchSize {
			return stats, nil
		}
	}
}

// claim pushes the row's next attempt past the lease so a concurrent
// dispatcher skips it. It reports false when another dispatcher got there
// first: a claimed row is no longer due, so the guarded update matches nothing.
func (w *OutboxDispatcher) claim(db *gorm.DB, n *models.Notification) (bool, error) {
	now := w.now().UTC()
	result := db.Model(&models.Notification{}).
		Where("id = ? AND status = ? AND attempts = ? AND next_attempt_at <= ?",
			n.ID, models.NotificationPending, n.Attempts, now).
		Update("next_attempt_at", now.Add(claimLease))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (w *OutboxDispatcher) deliver(ctx context.Context, db *gorm.DB, n *models.Notification, stats *DispatchStats) error {
	kind := string(n.Kind)

	var data mailer.MessageData
	email, err := func() (mailer.Email, error) {
		if err := n.Payload.Decode(&data); err != nil {
			return mailer.Email{}, err
		}
		return mailer.Build(n.Kind, n.Recipient, data)
	}()
	if err != nil {
		// A message that cannot be built will never succeed.
		stats.Failed++
		metrics.Notifications.WithLabelValues(kind, "failed").Inc()
		w.log.Error("dropping unbuildable notification", zap.Uint64("id", n.ID), zap.Error(err))
		return w.update(db, n.ID, map[string]interface{}{
			"status":     models.NotificationFailed,
			"last_error": truncateError(err),
		})
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	sendErr := w.sender.Send(sendCtx, email)
	cancel()

	attempts := n.Attempts + 1
	now := w.now().UTC()

	if sendErr == nil {
		stats.Sent++
		metrics.Notifications.WithLabelValues(kind, "sent").Inc()
		return w.update(db, n.ID, map[string]interface{}{
			"status":     models.NotificationSent,
			"attempts":   attempts,
			"sent_at":    now,
			"last_error": "",
		})
	}

	if errors.Is(sendErr, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}

	if attempts >= w.maxAttempts {
		stats.Failed++
		metrics.Notifications.WithLabelValues(kind, "failed").Inc()
		w.log.Warn("notification failed permanently",
			zap.Uint64("id", n.ID),
			zap.String("kind", kind),
			zap.Int("attempts", attempts),
			zap.Error(sendErr))
		return w.update(db, n.ID, map[string]interface{}{
			"status":     models.NotificationFailed,
			"attempts":   attempts,
			"last_error": truncateError(sendErr),
		})
	}

	stats.Retried++
	metrics.Notifications.WithLabelValues(kind, "retry").Inc()
	w.log.Warn("notification send failed, will retry",
		zap.Uint64("id", n.ID),
		zap.String("kind", kind),
		zap.Int("attempts", attempts),
		zap.Error(sendErr))
	return w.update(db, n.ID, map[string]interface{}{
		"attempts":        attempts,
		"next_attempt_at": now.Add(Backoff(attempts)),
		"last_error":      truncateError(sendErr),
	})
}

func (w *OutboxDispatcher) update(db *gorm.DB, id uint64, fields map[string]interface{}) error {
	return db.Model(&models.Notification{}).Where("id = ?", id).Updates(fields).Error
}

// truncateError caps the stored error at maxErrorBytes without splitting a
// UTF-8 sequence.
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) <= maxErrorBytes {
		return msg
	}
	cut := maxErrorBytes
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
