package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CodeSweeper deletes expired one-time codes.
type CodeSweeper interface {
	SweepOTP(ctx context.Context) (int64, error)
}

// OTPSweeper is a background worker that purges expired password reset codes.
type OTPSweeper struct {
	codes    CodeSweeper
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewOTPSweeper creates a new sweeper running every interval.
func NewOTPSweeper(codes CodeSweeper, log *zap.Logger, interval time.Duration) *OTPSweeper {
	return &OTPSweeper{
		codes:    codes,
		log:      log.Named("otp_sweeper"),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *OTPSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("otp sweeper started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *OTPSweeper) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("otp sweeper stopped")
}

func (w *OTPSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *OTPSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := w.codes.SweepOTP(ctx)
	if err != nil {
		w.log.Error("failed to sweep expired codes", zap.Error(err))
		return
	}

	if count > 0 {
		w.log.Info("swept expired codes", zap.Int64("count", count))
	}
}
