package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/utils"
	"gorm.io/gorm"
)

// Attachment is a file linked to one permit (signed method statements,
// isolation certificates, site photos).
type Attachment struct {
	ID           int       `gorm:"primary_key" json:"id"`
	PermitId     int       `gorm:"index;not null" json:"permit_id"`
	FileName     string    `gorm:"size:255" json:"file_name"`
	ObjectKey    string    `gorm:"size:500" json:"object_key"`
	FileUrl      string    `gorm:"size:1000" json:"file_url"`
	ThumbnailUrl string    `gorm:"size:1000" json:"thumbnail_url"`
	ContentType  string    `gorm:"size:100" json:"content_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewAttachment struct {
	PermitId     int    `json:"permit_id" binding:"required"`
	FileName     string `json:"file_name" binding:"required"`
	ObjectKey    string `json:"object_key" binding:"required"`
	ThumbnailUrl string `json:"thumbnail_url"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// CreateAttachment records a completed upload against its permit. The object
// itself is already in storage; this only links it.
func CreateAttachment(ctx context.Context, input *NewAttachment) (*Attachment, error) {
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Permit{}).Where("id = ?", input.PermitId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	attachment := Attachment{
		PermitId:     input.PermitId,
		FileName:     input.FileName,
		ObjectKey:    input.ObjectKey,
		FileUrl:      utils.BuildObjectAccessURL(input.ObjectKey),
		ThumbnailUrl: input.ThumbnailUrl,
		ContentType:  input.ContentType,
		Size:         input.Size,
	}
	if err := db.WithContext(ctx).Create(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func ListAttachments(ctx context.Context, permitId int) ([]Attachment, error) {
	db := config.GetDB()

	var attachments []Attachment
	if err := db.WithContext(ctx).Where("permit_id = ?", permitId).
		Order("created_at DESC").Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

func DeleteAttachment(ctx context.Context, id int) (*Attachment, error) {
	db := config.GetDB()

	var attachment Attachment
	if err := db.WithContext(ctx).First(&attachment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := db.WithContext(ctx).Delete(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}
