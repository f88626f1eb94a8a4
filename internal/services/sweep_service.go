package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SweepService runs the background expiry sweep: bookings past their
// payment deadline are expired and their seats released.
type SweepService struct {
	bookingService *BookingService
	logger         *logrus.Logger
	stopCh         chan struct{}
	interval       time.Duration
	batchSize      int

	mu           sync.Mutex
	lastRun      time.Time
	lastExpired  int
	totalExpired int
}

// SweepStatus is a snapshot of the sweep for the admin endpoint.
type SweepStatus struct {
	Interval     string    `json:"interval"`
	BatchSize    int       `json:"batch_size"`
	LastRun      time.Time `json:"last_run"`
	LastExpired  int       `json:"last_expired"`
	TotalExpired int       `json:"total_expired"`
}

// NewSweepService creates a new sweep service
func NewSweepService(bookingService *BookingService, interval time.Duration, batchSize int, logger *logrus.Logger) *SweepService {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweepService{
		bookingService: bookingService,
		logger:         logger,
		stopCh:         make(chan struct{}),
		interval:       interval,
		batchSize:      batchSize,
	}
}

// Start begins the background sweep
func (s *SweepService) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("Starting booking expiry sweep")
	go s.run()
}

// Stop stops the background sweep
func (s *SweepService) Stop() {
	s.logger.Info("Stopping booking expiry sweep")
	close(s.stopCh)
}

func (s *SweepService) run() {
	// Run immediately on start
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			s.logger.Info("Booking expiry sweep stopped")
			return
		}
	}
}

// RunOnce runs a single sweep cycle (also used by the manual admin trigger).
// Returns the number of bookings expired.
func (s *SweepService) RunOnce() int {
	expired, err := s.bookingService.SweepExpired(context.Background(), s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Expiry sweep failed")
		return 0
	}

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.lastExpired = expired
	s.totalExpired += expired
	s.mu.Unlock()

	if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired overdue bookings")
	}
	return expired
}

// Status returns sweep statistics for the admin dashboard.
func (s *SweepService) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SweepStatus{
		Interval:     s.interval.String(),
		BatchSize:    s.batchSize,
		LastRun:      s.lastRun,
		LastExpired:  s.lastExpired,
		TotalExpired: s.totalExpired,
	}
}
