package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// MessageSender is the part of the FCM client used for pushes.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes notifications to the device token a user registered.
type FCMNotifier struct {
	users  store.Users
	client MessageSender
	log    logrus.FieldLogger
}

// InitFirebase builds the FCM client from a service account file. An empty
// path disables push notifications and returns a nil client.
func InitFirebase(ctx context.Context, serviceAccountPath string) (*messaging.Client, error) {
	if serviceAccountPath == "" {
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return client, nil
}

func NewFCMNotifier(users store.Users, client MessageSender, log logrus.FieldLogger) *FCMNotifier {
	return &FCMNotifier{users: users, client: client, log: log}
}

func (f *FCMNotifier) Notify(ctx context.Context, userID uint, n Notification) error {
	user, err := f.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.FCMToken == "" {
		return nil
	}

	response, err := f.client.Send(ctx, buildPushMessage(user.FCMToken, n))
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	f.log.WithFields(logrus.Fields{"user_id": userID, "type": n.Type, "response": response}).Debug("push notification sent")
	return nil
}

func buildPushMessage(token string, n Notification) *messaging.Message {
	data := map[string]string{"type": n.Type}
	for k, v := range n.Data {
		data[k] = v
	}
	if n.Path != "" {
		data["path"] = n.Path
	}

	badge := 1
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:             "propnest_default",
				Sound:                 "default",
				DefaultSound:          true,
				Priority:              messaging.PriorityHigh,
				Tag:                   n.Type,
				DefaultVibrateTimings: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:          "default",
					Badge:          &badge,
					MutableContent: true,
				},
			},
		},
	}
}
