package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Permit is one permit-to-work record. `number` is the business key and the
// conflict key for re-uploads; `day` is tri-modal (see DayValue).
type Permit struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Number      string    `gorm:"size:100;not null;uniqueIndex" json:"number" binding:"required"`
	Description string    `gorm:"size:500" json:"description"`
	Company     string    `gorm:"size:191;index" json:"company"`
	Location    string    `gorm:"size:191" json:"location"`
	Type        string    `gorm:"size:50" json:"type"`
	Project     string    `gorm:"size:191" json:"project"`
	Owner       string    `gorm:"size:191" json:"owner"`
	Day         string    `gorm:"size:50" json:"day"`
	Status      string    `gorm:"size:50;index" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Permit) DayValue() DayValue {
	return ParseDayValue(p.Day)
}

type NewPermit struct {
	Number      string `json:"number" binding:"required"`
	Description string `json:"description"`
	Company     string `json:"company" binding:"required"`
	Location    string `json:"location"`
	Type        string `json:"type" binding:"required"`
	Project     string `json:"project"`
	Owner       string `json:"owner"`
	Day         string `json:"day"`
	Status      string `json:"status" binding:"required"`
}

func (input *NewPermit) toPermit() Permit {
	return Permit{
		Number:      input.Number,
		Description: input.Description,
		Company:     input.Company,
		Location:    input.Location,
		Type:        input.Type,
		Project:     input.Project,
		Owner:       input.Owner,
		Day:         ParseDayValue(input.Day).String(),
		Status:      input.Status,
	}
}

func CreatePermit(ctx context.Context, input *NewPermit) (*Permit, error) {
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Permit{}).Where("number = ?", input.Number).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate number")
	}

	permit := input.toPermit()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&permit).Error; err != nil {
			return err
		}
		return AppendPermitChange(tx, ctx, ChangeActionCreate, &permit)
	})
	if err != nil {
		return nil, err
	}
	return &permit, nil
}

// UpdatePermit is a full-field overwrite; partial edits are not supported
// (the dashboard always submits the whole form).
func UpdatePermit(ctx context.Context, id int, input *NewPermit) (*Permit, error) {
	db := config.GetDB()

	var permit Permit
	if err := db.WithContext(ctx).First(&permit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Permit{}).Where("number = ? AND NOT id = ?", input.Number, id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate number")
	}

	updated := input.toPermit()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&permit).Updates(map[string]interface{}{
			"number":      updated.Number,
			"description": updated.Description,
			"company":     updated.Company,
			"location":    updated.Location,
			"type":        updated.Type,
			"project":     updated.Project,
			"owner":       updated.Owner,
			"day":         updated.Day,
			"status":      updated.Status,
		}).Error; err != nil {
			return err
		}
		return AppendPermitChange(tx, ctx, ChangeActionUpdate, &permit)
	})
	if err != nil {
		return nil, err
	}
	return &permit, nil
}

func DeletePermit(ctx context.Context, id int) (*Permit, error) {
	db := config.GetDB()

	var permit Permit
	if err := db.WithContext(ctx).First(&permit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&permit).Error; err != nil {
			return err
		}
		return AppendPermitChange(tx, ctx, ChangeActionDelete, &permit)
	})
	if err != nil {
		return nil, err
	}
	return &permit, nil
}

func GetPermit(ctx context.Context, id int) (*Permit, error) {
	db := config.GetDB()

	var permit Permit
	if err := db.WithContext(ctx).First(&permit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &permit, nil
}

// ListPermits returns the full filtered set, newest first. The statistics
// endpoints and the export feed from this.
func ListPermits(ctx context.Context, filter *PermitFilter) ([]Permit, error) {
	db := config.GetDB()

	var permits []Permit
	dbCtx := filter.Apply(db.WithContext(ctx).Model(&Permit{}))
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&permits).Error; err != nil {
		return nil, err
	}
	return permits, nil
}

func CountPermits(ctx context.Context, filter *PermitFilter) (int64, error) {
	db := config.GetDB()

	var count int64
	dbCtx := filter.Apply(db.WithContext(ctx).Model(&Permit{}))
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// PaginatePermits pages by descending id cursor. hasNext is true when more
// rows remain past this page.
func PaginatePermits(ctx context.Context, filter *PermitFilter, limit int, after *string) ([]Permit, bool, error) {
	if limit <= 0 {
		limit = 20
	}

	db := config.GetDB()
	dbCtx := filter.Apply(db.WithContext(ctx).Model(&Permit{}))

	afterId, err := DecodeCursor(after)
	if err != nil {
		return nil, false, err
	}
	if afterId > 0 {
		dbCtx = dbCtx.Where("id < ?", afterId)
	}

	var permits []Permit
	if err := dbCtx.Order("id DESC").Limit(limit + 1).Find(&permits).Error; err != nil {
		return nil, false, err
	}

	hasNext := false
	if len(permits) > limit {
		hasNext = true
		permits = permits[:limit]
	}
	return permits, hasNext, nil
}

// permitAssignColumns are the columns refreshed when an upload collides with
// an existing number. id/created_at stay untouched.
var permitAssignColumns = []string{
	"description", "company", "location", "type", "project", "owner", "day", "status",
}

// UpsertPermit writes one row with insert-or-update semantics keyed on number.
func UpsertPermit(ctx context.Context, db *gorm.DB, permit *Permit) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number"}},
		DoUpdates: clause.AssignmentColumns(permitAssignColumns),
	}).Create(permit).Error
}

// ReplaceAllPermits wipes the table and bulk-inserts the given rows in one
// transaction. Either both steps commit or neither does.
func ReplaceAllPermits(ctx context.Context, permits []Permit) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Permit{}).Error; err != nil {
			return err
		}
		if len(permits) > 0 {
			if err := tx.CreateInBatches(permits, importBatchSize).Error; err != nil {
				return err
			}
		}
		return AppendBulkChange(tx, ctx, ChangeActionReload, len(permits))
	})
}
