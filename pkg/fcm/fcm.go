package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Config contains credentials required to talk to Firebase Cloud Messaging.
type Config struct {
	CredentialsFile string
}

// Result reports the outcome of one multicast send.
type Result struct {
	Sent   int
	Failed int
	// Unregistered lists tokens the transport reported as permanently
	// invalid, so callers can prune them.
	Unregistered []string
}

// Service sends multicast push messages through Firebase Cloud Messaging.
type Service struct {
	client *messaging.Client
	logger zerolog.Logger
}

// New constructs an FCM service instance from a service account file.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("fcm credentials file must be provided")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fcm client: %w", err)
	}

	return &Service{
		client: client,
		logger: logger.With().Str("component", "fcm").Logger(),
	}, nil
}

// SendMulticast delivers one message to every token in a single batch. Data
// values must already be stringified; FCM rejects non-string payloads.
// Per-token rejections are folded into the result, a whole-batch transport
// failure is returned as an error.
func (s *Service) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (Result, error) {
	if len(tokens) == 0 {
		return Result{}, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return Result{}, fmt.Errorf("fcm multicast send failed: %w", err)
	}

	result := Result{
		Sent:   response.SuccessCount,
		Failed: response.FailureCount,
	}
	for i, resp := range response.Responses {
		if resp.Error != nil && messaging.IsUnregistered(resp.Error) {
			result.Unregistered = append(result.Unregistered, tokens[i])
		}
	}

	s.logger.Debug().
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("fcm multicast completed")

	return result, nil
}
