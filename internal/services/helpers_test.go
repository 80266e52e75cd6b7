package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/propnest-backend/internal/logging"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/stretchr/testify/require"
)

// Seeded ids, see store.Seed.
const (
	ownerID   uint = 1
	owner2ID  uint = 2
	seekerID  uint = 3
	flatID    uint = 1 // price 2500, owner 1
	houseID   uint = 2 // price 6000, owner 1
	pgID      uint = 3 // price 900, owner 2
	testKeyID      = "rzp_test_key"
	testSecret     = "test_secret"
)

var testNow = time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, _ := store.NewFixture()
	require.NoError(t, store.Seed(context.Background(), s))
	return s
}

type sentNotification struct {
	UserID uint
	Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, userID uint, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{UserID: userID, Notification: n})
	return r.err
}

func (r *recordingNotifier) all() []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentNotification(nil), r.sent...)
}

func newBookingService(t *testing.T, s *store.Store, n Notifier) *BookingService {
	t.Helper()
	return NewBookingService(s, n, logging.Discard()).WithClock(func() time.Time { return testNow })
}

func mustBook(t *testing.T, svc *BookingService, propertyID, userID uint, in, out string) *models.Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), propertyID, userID, in, out)
	require.NoError(t, err)
	return b
}

func paginationOf(page, limit int) utils.Pagination {
	return utils.Pagination{Page: page, Limit: limit}
}
