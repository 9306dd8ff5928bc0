package credits

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/core/internal/config"
	"github.com/adforge/core/internal/models"
)

// ErrInsufficientCredits means the reservation would exceed the account limit.
// Callers must fail fast: no provider call may happen after this.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Service is the credit ledger. Reservations lock the account row so two
// concurrent generations can never both squeeze into the last credits.
type Service struct {
	db     *gorm.DB
	cfg    config.CreditsConfig
	logger *zap.Logger
}

func NewService(db *gorm.DB, cfg config.CreditsConfig, logger *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, logger: logger}
}

// Cost looks up the configured price for a media kind. Unknown kinds are a
// caller bug, surfaced as an error rather than a free generation.
func (s *Service) Cost(mediaKind string) (int64, error) {
	cost, ok := s.cfg.Costs[mediaKind]
	if !ok || cost <= 0 {
		return 0, fmt.Errorf("no credit cost configured for media kind %q", mediaKind)
	}
	return cost, nil
}

// Status summarizes one account for the caller-facing endpoint.
type Status struct {
	UserID    string `json:"userId"`
	Limit     int64  `json:"limit"`
	Reserved  int64  `json:"reserved"`
	Committed int64  `json:"committed"`
	Available int64  `json:"available"`
}

// Reserve atomically checks the balance and writes a reserved ledger entry.
// The account row is locked FOR UPDATE for the duration of the transaction,
// making check-and-reserve a single serialization point per user.
func (s *Service) Reserve(ctx context.Context, userID, mediaKind string, campaignID *string) (*models.CreditLedgerEntryModel, error) {
	cost, err := s.Cost(mediaKind)
	if err != nil {
		return nil, err
	}

	var entry *models.CreditLedgerEntryModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.lockAccount(tx, userID)
		if err != nil {
			return err
		}

		var used int64
		err = tx.Model(&models.CreditLedgerEntryModel{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(credits_consumed), 0)").
			Scan(&used).Error
		if err != nil {
			return err
		}

		if used+cost > account.CreditsLimit {
			return ErrInsufficientCredits
		}

		entry = &models.CreditLedgerEntryModel{
			UserID:          userID,
			ActionType:      mediaKind,
			CreditsConsumed: cost,
			State:           models.CreditReserved,
			CampaignID:      campaignID,
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credits reserved",
		zap.String("user", userID),
		zap.String("media_kind", mediaKind),
		zap.Int64("cost", cost),
	)
	return entry, nil
}

// Commit finalizes a reservation after the asset is durably hosted.
func (s *Service) Commit(ctx context.Context, entryID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.CreditLedgerEntryModel{}).
		Where("id = ? AND state = ?", entryID, models.CreditReserved).
		Update("state", models.CreditCommitted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ledger entry %s is not in reserved state", entryID)
	}
	return nil
}

// Release returns reserved credits after a failed generation. Releasing an
// already-released entry is a no-op, so the failure path can call it without
// tracking state.
func (s *Service) Release(ctx context.Context, entryID string) error {
	return s.db.WithContext(ctx).
		Where("id = ? AND state = ?", entryID, models.CreditReserved).
		Delete(&models.CreditLedgerEntryModel{}).Error
}

// AccountStatus reports the current limit and usage split.
func (s *Service) AccountStatus(ctx context.Context, userID string) (*Status, error) {
	account, err := s.ensureAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	type sums struct {
		Reserved  int64
		Committed int64
	}
	var totals sums
	err = s.db.WithContext(ctx).Model(&models.CreditLedgerEntryModel{}).
		Where("user_id = ?", userID).
		Select(
			"COALESCE(SUM(CASE WHEN state = ? THEN credits_consumed ELSE 0 END), 0) AS reserved, "+
				"COALESCE(SUM(CASE WHEN state = ? THEN credits_consumed ELSE 0 END), 0) AS committed",
			models.CreditReserved, models.CreditCommitted,
		).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	return &Status{
		UserID:    userID,
		Limit:     account.CreditsLimit,
		Reserved:  totals.Reserved,
		Committed: totals.Committed,
		Available: account.CreditsLimit - totals.Reserved - totals.Committed,
	}, nil
}

// lockAccount fetches the account row FOR UPDATE, creating it with the default
// limit on first touch.
func (s *Service) lockAccount(tx *gorm.DB, userID string) (*models.CreditAccountModel, error) {
	var account models.CreditAccountModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := models.CreditAccountModel{
		UserID:       userID,
		CreditsLimit: s.cfg.DefaultLimit,
	}
	if err := tx.Create(&created).Error; err != nil && !isDuplicateKey(err) {
		// A duplicate key means a concurrent transaction created the account
		// between our read and insert; fall through and lock its row instead.
		return nil, err
	}
	// Re-read into a fresh struct: a populated primary key would narrow the
	// lookup to the row the losing insert never wrote.
	var locked models.CreditAccountModel
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&locked).Error
	if err != nil {
		return nil, err
	}
	return &locked, nil
}

// isDuplicateKey reports whether err is a unique constraint violation, either
// gorm's translated sentinel or the raw MySQL 1062 error.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func (s *Service) ensureAccount(ctx context.Context, userID string) (*models.CreditAccountModel, error) {
	var account models.CreditAccountModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = models.CreditAccountModel{
		UserID:       userID,
		CreditsLimit: s.cfg.DefaultLimit,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
