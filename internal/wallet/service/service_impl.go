package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	walletdomain "github.com/smallbiznis/pioneer/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) walletdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, credit walletdomain.Credit) (bool, error) {
	credit, err := normalizeCredit(credit)
	if err != nil {
		return false, err
	}

	now := s.clock.Now().UTC()
	if credit.OccurredAt.IsZero() {
		credit.OccurredAt = now
	}

	record := walletdomain.WalletCredit{
		ID:                s.genID.Generate(),
		UserID:            credit.UserID,
		SourceType:        credit.SourceType,
		SourceID:          credit.SourceID,
		Points:            credit.Points,
		GuaranteedBalance: credit.GuaranteedBalance,
		Currency:          credit.Currency,
		OccurredAt:        credit.OccurredAt.UTC(),
		CreatedAt:         now,
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(&record)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Info("wallet credit already applied",
			zap.String("source_type", credit.SourceType),
			zap.String("source_id", credit.SourceID),
		)
		return false, nil
	}

	wallet := walletdomain.Wallet{
		UserID:    credit.UserID,
		Currency:  credit.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&wallet).Error; err != nil {
		return false, err
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE wallets
		 SET points = points + ?, guaranteed_balance = guaranteed_balance + ?, currency = ?, updated_at = ?
		 WHERE user_id = ?`,
		credit.Points,
		credit.GuaranteedBalance,
		credit.Currency,
		now,
		credit.UserID,
	).Error; err != nil {
		return false, err
	}

	return true, nil
}

func (s *Service) Get(ctx context.Context, userID string) (walletdomain.Wallet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return walletdomain.Wallet{}, walletdomain.ErrInvalidUser
	}

	var wallet walletdomain.Wallet
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, points, guaranteed_balance, currency, created_at, updated_at
		 FROM wallets WHERE user_id = ?`,
		userID,
	).Scan(&wallet).Error
	if err != nil {
		return walletdomain.Wallet{}, err
	}
	if wallet.UserID == "" {
		// Empty wallet for users never credited.
		return walletdomain.Wallet{UserID: userID}, nil
	}
	return wallet, nil
}

func normalizeCredit(credit walletdomain.Credit) (walletdomain.Credit, error) {
	credit.UserID = strings.TrimSpace(credit.UserID)
	if credit.UserID == "" {
		return credit, walletdomain.ErrInvalidUser
	}
	credit.SourceType = strings.TrimSpace(credit.SourceType)
	if credit.SourceType == "" {
		return credit, walletdomain.ErrInvalidSourceType
	}
	credit.SourceID = strings.TrimSpace(credit.SourceID)
	if credit.SourceID == "" {
		return credit, walletdomain.ErrInvalidSourceID
	}
	if credit.Points < 0 || credit.GuaranteedBalance < 0 {
		return credit, walletdomain.ErrInvalidAmount
	}
	credit.Currency = strings.ToUpper(strings.TrimSpace(credit.Currency))
	if credit.Currency == "" {
		return credit, walletdomain.ErrInvalidCurrency
	}
	return credit, nil
}
