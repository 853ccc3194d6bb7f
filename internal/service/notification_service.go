package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chorechart/internal/metrics"
	"chorechart/internal/models"
	"chorechart/internal/outbox"
	"chorechart/internal/repository"
	"chorechart/internal/sms"
)

const maxNotificationPage = 200

// NotificationEvent describes one fan-out to a set of users
type NotificationEvent struct {
	Type       models.NotificationType
	Title      string
	Message    string
	TaskID     *int64
	Recipients []int64
}

// Notifier fans events out to users. Delivery is best-effort.
type Notifier interface {
	Dispatch(ctx context.Context, ev NotificationEvent)
}

// NotificationChannels selects which outbound channels are live
type NotificationChannels struct {
	SMS   bool
	Email bool
}

// NotificationService writes in-app notifications and hands SMS and email
// deliveries to the outbox queue.
type NotificationService struct {
	notifications *repository.NotificationRepository
	users         *repository.UserRepository
	queue         outbox.Queue
	channels      NotificationChannels
	logger        *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewNotificationService creates a notification service
func NewNotificationService(
	notifications *repository.NotificationRepository,
	users *repository.UserRepository,
	queue outbox.Queue,
	channels NotificationChannels,
	logger *zap.Logger,
	m *metrics.Metrics,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		users:         users,
		queue:         queue,
		channels:      channels,
		logger:        logger,
		metrics:       m,
		now:           time.Now,
	}
}

// Dispatch never returns an error; failures are logged per recipient
func (s *NotificationService) Dispatch(ctx context.Context, ev NotificationEvent) {
	if len(ev.Recipients) == 0 {
		return
	}

	users, err := s.users.GetUsersByIDs(ev.Recipients)
	if err != nil {
		s.logger.Error("Failed to load notification recipients", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	for _, id := range ev.Recipients {
		user, ok := users[id]
		if !ok {
			continue
		}
		logger := s.logger.With(zap.Int64("user_id", id), zap.String("type", string(ev.Type)))

		if user.NotifyInApp {
			n := &models.Notification{
				UserID:    id,
				Title:     ev.Title,
				Message:   ev.Message,
				Type:      ev.Type,
				TaskID:    ev.TaskID,
				CreatedAt: s.now(),
			}
			if err := s.notifications.Create(n); err != nil {
				logger.Error("Failed to create notification", zap.Error(err))
			} else {
				s.metrics.Notification("in_app")
			}
		}

		if s.channels.SMS && user.NotifySMS && user.Phone != "" {
			s.enqueue(ctx, logger, outbox.NewMessage(outbox.ChannelSMS, user.Phone, user.Name, "", ev.Title+": "+ev.Message))
		}
		if s.channels.Email && user.NotifyEmail && user.Email != "" {
			s.enqueue(ctx, logger, outbox.NewMessage(outbox.ChannelEmail, user.Email, user.Name, ev.Title, ev.Message))
		}
	}
}

// EnqueueEmail queues a one-off email such as a welcome message
func (s *NotificationService) EnqueueEmail(ctx context.Context, to, name, subject, body string) {
	if !s.channels.Email {
		return
	}
	s.enqueue(ctx, s.logger, outbox.NewMessage(outbox.ChannelEmail, to, name, subject, body))
}

func (s *NotificationService) enqueue(ctx context.Context, logger *zap.Logger, msg outbox.Message) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(ctx, msg)
	if errors.Is(err, outbox.ErrQueueFull) {
		logger.Error("Outbox full, dropping outbound message",
			zap.String("channel", string(msg.Channel)),
			zap.String("message_id", msg.ID),
		)
		s.metrics.OutboxDelivery(string(msg.Channel), "dead_letter")
		return
	}
	if err != nil {
		logger.Warn("Failed to enqueue outbound message", zap.String("channel", string(msg.Channel)), zap.Error(err))
		return
	}
	s.metrics.Notification(string(msg.Channel))
}

// List returns the actor's notifications, newest first
func (s *NotificationService) List(actor models.Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	list, err := s.notifications.ListForUser(actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount counts the actor's unread notifications
func (s *NotificationService) UnreadCount(actor models.Actor) (int, error) {
	n, err := s.notifications.UnreadCount(actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one of the actor's notifications as read
func (s *NotificationService) MarkRead(actor models.Actor, id int64) error {
	ok, err := s.notifications.MarkRead(actor.UserID, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks all of the actor's notifications as read
func (s *NotificationService) MarkAllRead(actor models.Actor) (int64, error) {
	n, err := s.notifications.MarkAllRead(actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// Delete removes one of the actor's notifications
func (s *NotificationService) Delete(actor models.Actor, id int64) error {
	ok, err := s.notifications.Delete(actor.UserID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// SMSSender adapts an SMS client to the outbox worker
func SMSSender(client *sms.Client) outbox.Sender {
	return outbox.SenderFunc(func(ctx context.Context, msg outbox.Message) error {
		res := client.SendSMS(ctx, msg.To, msg.Body)
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	})
}
