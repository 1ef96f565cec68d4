package models

import (
	"context"
	"errors"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Partnership links an editor to a partner. An editor may work for many partners.
type Partnership struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PartnerId string    `gorm:"size:64;not null;uniqueIndex:idx_partnership_pair,priority:1" json:"partnerId"`
	EditorId  string    `gorm:"size:128;not null;uniqueIndex:idx_partnership_pair,priority:2;index" json:"editorId"`
	IsActive  bool      `gorm:"not null" json:"isActive"`
	Editor    *User     `gorm:"foreignKey:EditorId" json:"editor,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p Partnership) GetPartnerId() string {
	return p.PartnerId
}

type PartnershipInvite struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	PartnerId   string       `gorm:"size:64;not null;index" json:"partnerId"`
	EditorEmail string       `gorm:"size:255;not null;index" json:"editorEmail"`
	InvitedBy   string       `gorm:"size:128;not null" json:"invitedBy"`
	Status      InviteStatus `gorm:"size:20;not null;index" json:"status"`
	InviteToken string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt   time.Time    `gorm:"not null" json:"expiresAt"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewPartnershipInvite struct {
	EditorEmail string `json:"editorEmail" binding:"required,email"`
}

type CreatedPartnershipInvite struct {
	PartnershipInvite
	InviteToken string `json:"inviteToken"`
	AcceptURL   string `json:"acceptUrl"`
}

// HasActivePartnership checks editor access to a partner. tx may be a
// transaction; the lookup always ignores the tenant guard.
func HasActivePartnership(ctx context.Context, tx *gorm.DB, partnerId, editorId string) (bool, error) {
	if partnerId == "" || editorId == "" {
		return false, nil
	}
	if tx == nil {
		tx = config.GetDB()
	}
	var count int64
	err := tx.WithContext(crossTenant(ctx)).Model(&Partnership{}).
		Where("partner_id = ? AND editor_id = ? AND is_active = ?", partnerId, editorId, true).
		Count(&count).Error
	return count > 0, err
}

// ActivePartnerEditorIds lists editors currently partnered with partnerId.
func ActivePartnerEditorIds(ctx context.Context, partnerId string) ([]string, error) {
	var ids []string
	err := config.GetDB().WithContext(crossTenant(ctx)).Model(&Partnership{}).
		Where("partner_id = ? AND is_active = ?", partnerId, true).
		Order("created_at ASC").
		Pluck("editor_id", &ids).Error
	return ids, err
}

// GetPartnerships lists the caller's partnerships: by partner for tenant
// members, by editor for editors.
func GetPartnerships(ctx context.Context) ([]*Partnership, error) {
	db := config.GetDB()
	var results []*Partnership
	if callerRole(ctx) == UserRoleEditor {
		editorId, err := callerUserId(ctx)
		if err != nil {
			return nil, err
		}
		err = db.WithContext(crossTenant(ctx)).Where("editor_id = ?", editorId).Order("created_at DESC").Find(&results).Error
		return results, err
	}
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Preload("Editor").Where("partner_id = ?", partnerId).Order("created_at DESC").Find(&results).Error
	return results, err
}

// EndPartnership deactivates a partnership; either side may end it.
func EndPartnership(ctx context.Context, id string) (*Partnership, error) {
	scoped := crossTenant(ctx)
	partnership, err := loadById[Partnership](scoped, id)
	if err != nil {
		return nil, err
	}
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	if callerRole(ctx) == UserRoleEditor {
		if partnership.EditorId != uid {
			return nil, utils.Forbidden("not your partnership")
		}
	} else {
		partnerId, err := requireManager(ctx)
		if err != nil {
			return nil, err
		}
		if partnership.PartnerId != partnerId {
			return nil, utils.Forbidden("cannot access resource owned by other partner")
		}
	}
	if err := config.GetDB().WithContext(scoped).Model(partnership).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	partnership.IsActive = false
	return partnership, nil
}

func CreatePartnershipInvite(ctx context.Context, input *NewPartnershipInvite) (*CreatedPartnershipInvite, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	invitedBy, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	email := utils.NormalizeEmail(input.EditorEmail)
	if !utils.IsValidEmail(email) {
		return nil, utils.BadRequest("invalid email")
	}

	db := config.GetDB()
	var editor User
	err = db.WithContext(crossTenant(ctx)).Where("email = ?", email).First(&editor).Error
	if err == nil {
		if editor.Role != UserRoleEditor {
			return nil, utils.BadRequest("user is not an editor")
		}
		active, err := HasActivePartnership(ctx, nil, partnerId, editor.ID)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, utils.Conflict("editor is already a partner")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token, err := utils.RandomToken(24)
	if err != nil {
		return nil, err
	}
	invite := PartnershipInvite{
		ID:          newId(),
		PartnerId:   partnerId,
		EditorEmail: email,
		InvitedBy:   invitedBy,
		Status:      InviteStatusPending,
		InviteToken: token,
		ExpiresAt:   time.Now().Add(config.InviteTTL()),
	}
	acceptURL := config.BaseURL() + "/partnerships/accept?token=" + token
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invite).Error; err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, partnerId, EventPartnershipInvite, InviteEventPayload{
			InviteId:  invite.ID,
			Email:     email,
			AcceptURL: acceptURL,
			ExpiresAt: invite.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedPartnershipInvite{PartnershipInvite: invite, InviteToken: token, AcceptURL: acceptURL}, nil
}

func loadPendingPartnershipInvite(ctx context.Context, token string) (*PartnershipInvite, *User, error) {
	if token == "" {
		return nil, nil, utils.BadRequest("token is required")
	}
	editor, err := CurrentUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	if editor.Role != UserRoleEditor {
		return nil, nil, utils.Forbidden("only editors can respond to partnership invites")
	}
	db := config.GetDB().WithContext(crossTenant(ctx))
	var invite PartnershipInvite
	if err := db.Where("invite_token = ?", token).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NotFound("invite not found")
		}
		return nil, nil, err
	}
	if invite.Status != InviteStatusPending {
		return nil, nil, utils.BadRequest("invite is no longer valid")
	}
	if time.Now().After(invite.ExpiresAt) {
		if err := db.Model(&invite).Update("status", InviteStatusExpired).Error; err != nil {
			config.LogError(config.GetLogger(), "PartnershipModel", "loadPendingPartnershipInvite", "mark invite expired", invite.ID, err)
		}
		return nil, nil, utils.BadRequest("invite expired")
	}
	if utils.NormalizeEmail(editor.Email) != invite.EditorEmail {
		return nil, nil, utils.Forbidden("invite was issued to a different email")
	}
	return &invite, editor, nil
}

// AcceptPartnershipInvite creates or re-activates the (partner, editor) pair.
func AcceptPartnershipInvite(ctx context.Context, token string) (*Partnership, error) {
	invite, editor, err := loadPendingPartnershipInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	scoped := crossTenant(ctx)
	var saved Partnership
	partnership := Partnership{
		ID:        newId(),
		PartnerId: invite.PartnerId,
		EditorId:  editor.ID,
		IsActive:  true,
	}
	err = config.GetDB().WithContext(scoped).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PartnershipInvite{}).
			Where("id = ? AND status = ?", invite.ID, InviteStatusPending).
			Update("status", InviteStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("invite already used")
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "partner_id"}, {Name: "editor_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true, "updated_at": time.Now()}),
		}).Create(&partnership).Error; err != nil {
			return err
		}
		// The upsert may have touched an older row with a different id.
		if err := tx.Where("partner_id = ? AND editor_id = ?", invite.PartnerId, editor.ID).First(&saved).Error; err != nil {
			return err
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   invite.PartnerId,
			Action:      "partnership_accepted",
			Category:    ActivityCategoryTeam,
			Title:       "Editor partnership started",
			Description: editor.Email + " accepted the partnership invite",
		})
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func DeclinePartnershipInvite(ctx context.Context, token string) (*PartnershipInvite, error) {
	invite, _, err := loadPendingPartnershipInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(crossTenant(ctx)).Model(invite).Update("status", InviteStatusDeclined).Error; err != nil {
		return nil, err
	}
	invite.Status = InviteStatusDeclined
	return invite, nil
}
