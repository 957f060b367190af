package inapp

import (
	"context"

	"procurement_backend/internal/notification/sse"
	"procurement_backend/platform/apperr"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

// Store persists in-app notifications. Implemented by Repository.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Pusher delivers a live event to a connected user.
type Pusher interface {
	Publish(userID uuid.UUID, event sse.Event)
}

type Service struct {
	repo Store
	push Pusher
	log  *logger.Logger
}

// NewService creates the in-app service. push may be nil.
func NewService(repo Store, push Pusher, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		push: push,
		log:  log,
	}
}

type SendParams struct {
	OrgID        uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // "info", "success", "warning", "error"
}

// Send persists the notification and pushes it to the user if connected.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	if p.Category == "" {
		p.Category = CategoryInfo
	}

	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		OrganizationID: p.OrgID,
		UserID:         p.UserID,
		Title:          p.Title,
		Content:        p.Content,
		ResourceID:     p.ResourceID,
		ResourceType:   resourceType,
		Category:       p.Category,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to persist in-app notification", "error", err, "user_id", p.UserID)
		return err
	}

	if s.push != nil {
		s.push.Publish(p.UserID, sse.Event{
			Type:    sse.EventNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}

	return nil
}

// Broadcast sends one notification row per user. Failures are logged and
// do not stop the remaining users; the number delivered is returned.
func (s *Service) Broadcast(ctx context.Context, userIDs []uuid.UUID, p SendParams) int {
	sent := 0
	for _, userID := range userIDs {
		p.UserID = userID
		if err := s.Send(ctx, p); err != nil {
			continue
		}
		sent++
	}
	return sent
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, unreadOnly, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) (Notification, error) {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
