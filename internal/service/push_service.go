package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/observability"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
	"github.com/uniserve-app/uniserve-go-api/pkg/fcm"
)

// ErrDeliveryFailed indicates the push transport rejected an entire batch.
var ErrDeliveryFailed = errors.New("push delivery failed")

// DeliveryResult aggregates per-endpoint outcomes of one fan-out.
type DeliveryResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// PushSender is the transport that fans one message out to a batch of
// device tokens.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (fcm.Result, error)
}

// PushService owns the device endpoint registry and best-effort push
// delivery. It never mutates business state.
type PushService interface {
	RegisterDevice(ctx context.Context, userID uint, payload dto.RegisterDeviceRequest) (dto.DeviceTokenResponse, error)
	Deliver(ctx context.Context, userID uint, title, body string, data map[string]interface{}) (DeliveryResult, error)
	DeliverAsync(userID uint, title, body string, data map[string]interface{})
}

type pushService struct {
	tokens    repository.DeviceTokenRepository
	sender    PushSender
	validator *validator.Validate
	logger    zerolog.Logger
	timeout   time.Duration
}

// NewPushService constructs a push service instance. A nil sender disables
// transmission while keeping endpoint registration working, which the tests
// and local development rely on.
func NewPushService(tokens repository.DeviceTokenRepository, sender PushSender, validate *validator.Validate, logger zerolog.Logger, timeout time.Duration) PushService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &pushService{
		tokens:    tokens,
		sender:    sender,
		validator: validate,
		logger:    logger.With().Str("component", "push_service").Logger(),
		timeout:   timeout,
	}
}

func (s *pushService) RegisterDevice(ctx context.Context, userID uint, payload dto.RegisterDeviceRequest) (dto.DeviceTokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DeviceTokenResponse{}, err
	}

	platform := strings.ToLower(strings.TrimSpace(payload.Platform))
	if platform == "" {
		platform = "android"
	}

	token := models.DeviceToken{
		UserID:   userID,
		Token:    payload.Token,
		Platform: platform,
	}
	if err := s.tokens.Upsert(ctx, &token); err != nil {
		return dto.DeviceTokenResponse{}, err
	}

	s.logger.Info().Uint("user_id", userID).Str("platform", platform).Msg("device token registered")

	return dto.NewDeviceTokenResponse(token), nil
}

// Deliver fans the message out to every endpoint registered for the user.
// A user without endpoints yields a zero result, not an error. Per-token
// rejections land in the Failed count; only a whole-batch transport failure
// is returned as an error.
func (s *pushService) Deliver(ctx context.Context, userID uint, title, body string, data map[string]interface{}) (DeliveryResult, error) {
	endpoints, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		return DeliveryResult{}, err
	}
	if len(endpoints) == 0 {
		return DeliveryResult{}, nil
	}

	tokens := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if endpoint.Token != "" {
			tokens = append(tokens, endpoint.Token)
		}
	}
	if len(tokens) == 0 {
		return DeliveryResult{}, nil
	}

	if s.sender == nil {
		s.logger.Debug().Uint("user_id", userID).Msg("push sender not configured, skipping delivery")
		return DeliveryResult{}, nil
	}

	result, err := s.sender.SendMulticast(ctx, tokens, title, body, stringifyData(title, body, data))
	if err != nil {
		observability.PushFailed().Add(float64(len(tokens)))
		return DeliveryResult{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	observability.PushSent().Add(float64(result.Sent))
	observability.PushFailed().Add(float64(result.Failed))

	for _, stale := range result.Unregistered {
		if err := s.tokens.DeleteByToken(ctx, stale); err != nil {
			s.logger.Warn().Err(err).Msg("failed to prune unregistered device token")
		}
	}

	return DeliveryResult{Sent: result.Sent, Failed: result.Failed}, nil
}

// DeliverAsync hands delivery to a background goroutine with its own
// bounded timeout, detached from the caller's request lifetime. Failures
// are logged and dropped; they never unwind a committed state transition.
func (s *pushService) DeliverAsync(userID uint, title, body string, data map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		result, err := s.Deliver(ctx, userID, title, body, data)
		if err != nil {
			s.logger.Warn().Err(err).Uint("user_id", userID).Msg("push delivery failed")
			return
		}
		if result.Failed > 0 {
			s.logger.Warn().
				Uint("user_id", userID).
				Int("sent", result.Sent).
				Int("failed", result.Failed).
				Msg("push delivery partially failed")
		}
	}()
}

// stringifyData flattens the payload into the string-keyed string map the
// push transport requires, dropping nil values.
func stringifyData(title, body string, data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data)+3)
	for key, value := range data {
		if value == nil {
			continue
		}
		out[key] = fmt.Sprintf("%v", value)
	}
	out["title"] = title
	out["body"] = body
	out["click_action"] = "FLUTTER_NOTIFICATION_CLICK"
	return out
}
