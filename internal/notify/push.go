package notify

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/go-faster/errors"
	"google.golang.org/api/option"
)

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender creates an FCMSender from a service-account credentials
// file. An empty path yields a sender that reports ErrNotConfigured.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	if credentialsFile == "" {
		return &FCMSender{}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "init firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "init messaging client")
	}
	return &FCMSender{client: client}, nil
}

// Send delivers one notification to one device token.
func (s *FCMSender) Send(ctx context.Context, token, title, body string) error {
	if s.client == nil {
		return ErrNotConfigured
	}

	_, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	if err != nil {
		return errors.Wrap(err, "fcm send")
	}
	return nil
}
