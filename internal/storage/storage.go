package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/C4T-BuT-S4D/vouch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Storage struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&models.Member{},
		&models.Message{},
		&models.IDForward{},
		&models.GlobalState{},
		&models.Secret{},
	); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

func (s *Storage) GetMember(ctx context.Context, memberID int64) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).Where("id = ?", memberID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("getting member %d: %w", memberID, models.ErrMemberNotFound)
		}
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return &member, nil
}

// SetMember creates the member or replaces every field of an existing one.
func (s *Storage) SetMember(ctx context.Context, member *models.Member) error {
	if err := s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(member).
		Error; err != nil {
		return fmt.Errorf("setting member: %w", err)
	}
	return nil
}

func (s *Storage) UpdateMember(ctx context.Context, memberID int64, patch *models.Patch) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil
	}

	res := s.db.
		WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", memberID).
		Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("updating member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating member %d: %w", memberID, models.ErrMemberNotFound)
	}

	return nil
}

func (s *Storage) ListMembersInState(ctx context.Context, state models.VerState) ([]*models.Member, error) {
	var result []*models.Member
	if err := s.db.
		WithContext(ctx).
		Where("ver_state = ? AND id_ver = ?", state, false).
		Order("ver_time").
		Find(&result).
		Error; err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return result, nil
}

func (s *Storage) AddIDForward(ctx context.Context, fwd *models.IDForward) error {
	if err := s.db.WithContext(ctx).Create(fwd).Error; err != nil {
		return fmt.Errorf("creating id forward: %w", err)
	}
	return nil
}

func (s *Storage) GetIDForward(ctx context.Context, id string) (*models.IDForward, error) {
	var fwd models.IDForward
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&fwd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("getting id forward %s: %w", id, models.ErrIDForwardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting id forward: %w", err)
	}
	return &fwd, nil
}

// GetOrCreateSecret returns the named secret, generating and storing a
// random one on first use.
func (s *Storage) GetOrCreateSecret(ctx context.Context, name string, size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}

	var secret models.Secret
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).
			Create(&models.Secret{Name: name, Value: value}).
			Error; err != nil {
			return fmt.Errorf("creating secret: %w", err)
		}

		if err := tx.Where("name = ?", name).First(&secret).Error; err != nil {
			return fmt.Errorf("getting secret: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("in tx: %w", err)
	}

	return secret.Value, nil
}

func (s *Storage) GetOrCreateGlobalState(ctx context.Context) (*models.GlobalState, error) {
	state := models.GlobalState{ID: 1}
	if err := s.db.WithContext(ctx).FirstOrCreate(&state, models.GlobalState{ID: 1}).Error; err != nil {
		return nil, fmt.Errorf("getting global state: %w", err)
	}
	return &state, nil
}

func (s *Storage) UpdateLastUpdate(ctx context.Context, updateID int) error {
	if err := s.db.
		WithContext(ctx).
		Model(&models.GlobalState{}).
		Where("id = ? AND last_update_id < ?", 1, updateID).
		Update("last_update_id", updateID).
		Error; err != nil {
		return fmt.Errorf("updating last update: %w", err)
	}
	return nil
}

func (s *Storage) AddMessage(ctx context.Context, msg *models.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("creating message: %w", err)
	}
	return nil
}

func (s *Storage) GetMessagesForUser(
	ctx context.Context,
	userID int64,
	chatID int64,
	messageType models.MessageType,
) ([]*models.Message, error) {
	var result []*models.Message
	if err := s.db.
		WithContext(ctx).
		Where(
			"associated_user_id = ? AND chat_id = ? AND message_type = ?",
			userID,
			chatID,
			messageType,
		).
		Limit(100).
		Find(&result).
		Error; err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	return result, nil
}

func (s *Storage) GetMessagesOlderThan(ctx context.Context, olderThan time.Time) ([]*models.Message, error) {
	var result []*models.Message
	if err := s.db.
		WithContext(ctx).
		Where("created_at < ?", olderThan).
		Limit(100).
		Find(&result).
		Error; err != nil {
		return nil, fmt.Errorf("getting messages: %w", err)
	}
	return result, nil
}

func (s *Storage) DeleteMessages(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(messages).Error; err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}
