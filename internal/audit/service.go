package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"parami-backend/internal/models"
)

var (
	ErrLogNotFound   = errors.New("audit log not found")
	ErrAlreadyUndone = errors.New("this change has already been undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
)

type LogOptions struct {
	BranchID    *string
	UserID      string
	UserName    string
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func marshalOrNull(v any) string {
	// jsonb rejects an empty string, so absent snapshots are stored as null.
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// WriteLog appends an entry. Pass the transaction handle to make the entry
// part of the change it describes.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  marshalOrNull(opts.Before),
		AfterData:   marshalOrNull(opts.After),
	}

	if err := db.Create(&entry).Error; err != nil {
		return errors.Wrap(err, "writing audit log")
	}
	return nil
}

// Reverter reverses the change recorded by entry using tx.
type Reverter func(tx *gorm.DB, entry models.AuditLog) error

// Service undoes audited changes through reverters registered per entity type.
type Service struct {
	db        *gorm.DB
	reverters map[string]Reverter
	now       func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, reverters: make(map[string]Reverter), now: time.Now}
}

func (s *Service) Register(entityType string, r Reverter) {
	s.reverters[entityType] = r
}

// Find returns one entry.
func (s *Service) Find(id string) (*models.AuditLog, error) {
	var entry models.AuditLog
	err := s.db.First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding audit log %s", id)
	}
	return &entry, nil
}

// Undo reverts the entry, marks it undone and records the undo, all in one transaction.
func (s *Service) Undo(logID, userID, userName string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		err := tx.First(&entry, "id = ?", logID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLogNotFound
		}
		if err != nil {
			return errors.Wrapf(err, "finding audit log %s", logID)
		}

		if entry.IsUndone {
			return ErrAlreadyUndone
		}
		if entry.Action == models.AuditActionUndo {
			return ErrNotUndoable
		}

		revert, ok := s.reverters[entry.EntityType]
		if !ok {
			return ErrNotUndoable
		}

		// Claim the entry first so two concurrent undos cannot both revert it.
		res := tx.Model(&models.AuditLog{}).
			Where("id = ? AND is_undone = ?", entry.ID, false).
			Updates(map[string]interface{}{
				"is_undone": true,
				"undone_by": userID,
				"undone_at": s.now(),
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "marking audit log undone")
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUndone
		}

		if err := revert(tx, entry); err != nil {
			return err
		}

		undo := models.AuditLog{
			BranchID:    entry.BranchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("Undone: %s", entry.Description),
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&undo).Error; err != nil {
			return errors.Wrap(err, "writing undo log")
		}
		return nil
	})
}
