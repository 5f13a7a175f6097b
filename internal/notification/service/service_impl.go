package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/notification/domain"
	"github.com/smallbiznis/pioneer/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (*domain.Notification, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	kind := strings.TrimSpace(req.Type)
	if kind == "" {
		return nil, domain.ErrInvalidType
	}
	if tx == nil {
		tx = s.db
	}

	notification := &domain.Notification{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Type:      kind,
		Title:     strings.TrimSpace(req.Title),
		Message:   strings.TrimSpace(req.Message),
		Data:      datatypes.JSONMap(req.Data),
		CreatedAt: s.clock.Now().UTC(),
	}
	if notification.Data == nil {
		notification.Data = datatypes.JSONMap{}
	}
	if err := s.repo.Insert(ctx, tx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *Service) List(ctx context.Context, userID string, req domain.ListRequest) (domain.ListResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ListResponse{}, domain.ErrInvalidUser
	}

	limit := req.Limit()
	items, err := s.repo.ListByUser(ctx, s.db, userID, req.UnreadOnly, req.Pagination)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(n *domain.Notification) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: n.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	notifications := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		notifications = append(notifications, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, Notifications: notifications}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrInvalidUser
	}
	notificationID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || notificationID == 0 {
		return domain.ErrInvalidID
	}

	updated, err := s.repo.MarkRead(ctx, s.db, userID, notificationID)
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}
