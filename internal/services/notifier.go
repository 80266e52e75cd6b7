package services

import (
	"context"
	"errors"

	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Notification types
const (
	NotificationBookingRequested = "booking_requested"
	NotificationBookingAccepted  = "booking_accepted"
	NotificationBookingRejected  = "booking_rejected"
	NotificationPaymentCompleted = "payment_completed"
	NotificationNewMessage       = "new_message"
)

type Notification struct {
	Type  string            `json:"type"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Path  string            `json:"path,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers a notification to one user. Delivery is best effort:
// callers log the error and carry on.
type Notifier interface {
	Notify(ctx context.Context, userID uint, n Notification) error
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, uint, Notification) error { return nil }

// MultiNotifier fans a notification out to every channel and joins the errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, userID uint, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, userID, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmailNotifier mails booking and payment events to the user's address.
type EmailNotifier struct {
	users  store.Users
	mailer *utils.Mailer
}

func NewEmailNotifier(users store.Users, mailer *utils.Mailer) *EmailNotifier {
	return &EmailNotifier{users: users, mailer: mailer}
}

func (e *EmailNotifier) Notify(ctx context.Context, userID uint, n Notification) error {
	if !e.mailer.Configured() {
		return nil
	}
	// Chat traffic goes over the socket and push only.
	if n.Type == NotificationNewMessage {
		return nil
	}
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return e.mailer.SendNotificationEmail(user.Email, n.Title, n.Body, n.Path)
}

// notify sends n and logs failures without returning them.
func notify(ctx context.Context, notifier Notifier, log logrus.FieldLogger, userID uint, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, userID, n); err != nil {
		log.WithFields(logrus.Fields{
			"user_id": userID,
			"type":    n.Type,
		}).WithError(err).Warn("notification delivery failed")
	}
}
