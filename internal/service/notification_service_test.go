package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
)

func TestNotifyPersistsAndBroadcasts(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, nil, nil, "", nil, testLogger())

	stream, cleanup := svc.Subscribe(20)
	defer cleanup()

	notification := models.Notification{
		Type:       models.NotificationTypeVolunteerRequest,
		SenderID:   10,
		ReceiverID: 20,
		Title:      "New volunteer request",
		Body:       "A student volunteered",
	}
	require.NoError(t, notification.SetPayload(models.NotificationPayload{
		Kind:          models.PayloadKindVolunteerDecision,
		ActivityID:    1,
		StudentUserID: 10,
	}))

	created, err := svc.Notify(context.Background(), &notification)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, models.NotificationStatusUnread, created.Status)

	select {
	case received := <-stream:
		require.Equal(t, created.ID, received.ID)
		require.True(t, received.Payload.Actionable())
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast notification")
	}
}

func TestUnreadCountCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	db := testDB(t)
	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, nil, redisClient, "uniserve", nil, testLogger())

	for i := 0; i < 3; i++ {
		notification := models.Notification{
			Type:       models.NotificationTypeRequestAccepted,
			SenderID:   1,
			ReceiverID: 7,
			Title:      "Request accepted",
		}
		_, err := svc.Notify(context.Background(), &notification)
		require.NoError(t, err)
	}

	count, err := svc.UnreadCount(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	// The cached value is served until something invalidates it.
	cached, err := svc.UnreadCount(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(3), cached)

	notifications, err := svc.List(context.Background(), 7, 1, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	_, err = svc.MarkRead(context.Background(), notifications[0].ID, 7)
	require.NoError(t, err)

	count, err = svc.UnreadCount(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestMarkReadScopedToReceiver(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, nil, nil, "", nil, testLogger())

	notification := models.Notification{
		Type:       models.NotificationTypeRequestRejected,
		SenderID:   1,
		ReceiverID: 5,
		Title:      "Request rejected",
	}
	created, err := svc.Notify(context.Background(), &notification)
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), created.ID, 99)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := svc.MarkRead(context.Background(), created.ID, 5)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusRead, read.Status)
	require.NotNil(t, read.ReadAt)

	// Marking again is a no-op, not an error.
	again, err := svc.MarkRead(context.Background(), created.ID, 5)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusRead, again.Status)
}

func TestSubscribeDropsSlowClients(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, nil, nil, "", nil, testLogger())

	stream, cleanup := svc.Subscribe(4)

	// Fill the buffer past capacity; the broadcast must not block.
	for i := 0; i < notificationBufferSize+4; i++ {
		notification := models.Notification{
			Type:       models.NotificationTypeServiceProposal,
			SenderID:   1,
			ReceiverID: 4,
			Title:      "New service proposal",
		}
		_, err := svc.Notify(context.Background(), &notification)
		require.NoError(t, err)
	}

	require.Len(t, stream, notificationBufferSize)

	cleanup()
	_, open := <-stream
	require.True(t, open) // buffered events drain first

	for range stream {
	}
}
