package services

import (
	"context"
	"time"

	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/metrics"
	"github.com/saldanamusic/splitsheets/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier queues outbound email in the notifications outbox. Delivery is
// done by the outbox dispatcher worker, so a mail outage never blocks or
// rolls back a lifecycle transition.
type Notifier struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewNotifier creates a notifier writing to db.
func NewNotifier(db *gorm.DB, log *zap.Logger) *Notifier {
	return &Notifier{db: db, log: log.Named("notifier"), now: time.Now}
}

// Enqueue queues one message. Failures are logged and reported as false.
func (n *Notifier) Enqueue(ctx context.Context, kind models.NotificationKind, to string, data mailer.MessageData) bool {
	row := &models.Notification{
		Kind:          kind,
		Recipient:     models.NormalizeEmail(to),
		Payload:       models.NewJSON(data),
		Status:        models.NotificationPending,
		NextAttemptAt: n.now().UTC(),
	}
	if err := n.db.WithContext(ctx).Create(row).Error; err != nil {
		n.log.Warn("failed to enqueue notification",
			zap.String("kind", string(kind)), zap.String("to", row.Recipient), zap.Error(err))
		return false
	}

	metrics.Notifications.WithLabelValues(string(kind), "enqueued").Inc()
	return true
}
