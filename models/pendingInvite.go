package models

import (
	"context"
	"errors"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

// PendingInvite invites someone into a partner's team with a fixed role.
type PendingInvite struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	PartnerId   string       `gorm:"size:64;not null;index" json:"partnerId"`
	Email       string       `gorm:"size:255;not null;index" json:"email"`
	Role        UserRole     `gorm:"size:20;not null" json:"role"`
	InvitedBy   string       `gorm:"size:128;not null" json:"invitedBy"`
	Status      InviteStatus `gorm:"size:20;not null;index" json:"status"`
	InviteToken string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt   time.Time    `gorm:"not null" json:"expiresAt"`
	AcceptedAt  *time.Time   `json:"acceptedAt"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (i PendingInvite) GetPartnerId() string {
	return i.PartnerId
}

type NewTeamInvite struct {
	Email string   `json:"email" binding:"required,email"`
	Role  UserRole `json:"role" binding:"required"`
}

// CreatedInvite is returned once to the inviter; the token is not readable later.
type CreatedInvite struct {
	PendingInvite
	InviteToken string `json:"inviteToken"`
	AcceptURL   string `json:"acceptUrl"`
}

type InviteEventPayload struct {
	InviteId  string    `json:"inviteId"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role,omitempty"`
	AcceptURL string    `json:"acceptUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func CreateTeamInvite(ctx context.Context, input *NewTeamInvite) (*CreatedInvite, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	invitedBy, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	email := utils.NormalizeEmail(input.Email)
	if !utils.IsValidEmail(email) {
		return nil, utils.BadRequest("invalid email")
	}
	if !input.Role.IsValid() || input.Role == UserRoleEditor {
		return nil, utils.BadRequest("invalid role", map[string]string{"role": "partner|admin|photographer"})
	}

	db := config.GetDB()
	var existing int64
	if err := db.WithContext(crossTenant(ctx)).Model(&User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.Conflict("a user with this email already exists")
	}
	var pending int64
	if err := db.WithContext(ctx).Model(&PendingInvite{}).
		Where("partner_id = ? AND email = ? AND status = ? AND expires_at > ?", partnerId, email, InviteStatusPending, time.Now()).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, utils.Conflict("an invite for this email is already pending")
	}

	token, err := utils.RandomToken(24)
	if err != nil {
		return nil, err
	}
	invite := PendingInvite{
		ID:          newId(),
		PartnerId:   partnerId,
		Email:       email,
		Role:        input.Role,
		InvitedBy:   invitedBy,
		Status:      InviteStatusPending,
		InviteToken: token,
		ExpiresAt:   time.Now().Add(config.InviteTTL()),
	}
	acceptURL := config.BaseURL() + "/invites/accept?token=" + token

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invite).Error; err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, partnerId, EventTeamInvite, InviteEventPayload{
			InviteId:  invite.ID,
			Email:     email,
			Role:      invite.Role,
			AcceptURL: acceptURL,
			ExpiresAt: invite.ExpiresAt,
		}); err != nil {
			return err
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   partnerId,
			Action:      "team_invite_created",
			Category:    ActivityCategoryTeam,
			Title:       "Team invite sent",
			Description: email + " invited as " + string(invite.Role),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedInvite{PendingInvite: invite, InviteToken: token, AcceptURL: acceptURL}, nil
}

func GetTeamInvites(ctx context.Context) ([]*PendingInvite, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	var invites []*PendingInvite
	err = config.GetDB().WithContext(ctx).
		Where("partner_id = ? AND status = ?", partnerId, InviteStatusPending).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

func RevokeTeamInvite(ctx context.Context, id string) (*PendingInvite, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	invite, err := GetResource[PendingInvite](ctx, id)
	if err != nil {
		return nil, err
	}
	if invite.Status != InviteStatusPending {
		return nil, utils.Conflict("invite is no longer pending")
	}
	if err := config.GetDB().WithContext(ctx).Model(invite).Update("status", InviteStatusRevoked).Error; err != nil {
		return nil, err
	}
	invite.Status = InviteStatusRevoked
	return invite, nil
}

// AcceptTeamInvite consumes the token and creates the caller's User with the
// invite's role and partner.
func AcceptTeamInvite(ctx context.Context, token string) (*User, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	email, _ := utils.GetUserEmailFromContext(ctx)
	email = utils.NormalizeEmail(email)
	if token == "" {
		return nil, utils.BadRequest("token is required")
	}

	db := config.GetDB()
	scoped := crossTenant(ctx)
	var invite PendingInvite
	if err := db.WithContext(scoped).Where("invite_token = ?", token).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("invite not found")
		}
		return nil, err
	}
	if invite.Status != InviteStatusPending {
		return nil, utils.BadRequest("invite is no longer valid")
	}
	if time.Now().After(invite.ExpiresAt) {
		if err := db.WithContext(scoped).Model(&invite).Update("status", InviteStatusExpired).Error; err != nil {
			config.LogError(config.GetLogger(), "InviteModel", "AcceptTeamInvite", "mark invite expired", invite.ID, err)
		}
		return nil, utils.BadRequest("invite expired")
	}
	if email == "" || email != invite.Email {
		return nil, utils.Forbidden("invite was issued to a different email")
	}
	if _, err := GetUserByUid(ctx, uid); err == nil {
		return nil, utils.Conflict("user already registered")
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	partnerId := invite.PartnerId
	user := User{
		ID:        uid,
		Email:     invite.Email,
		Role:      invite.Role,
		PartnerId: &partnerId,
		Status:    UserStatusActive,
	}
	err = db.WithContext(scoped).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&PendingInvite{}).
			Where("id = ? AND status = ?", invite.ID, InviteStatusPending).
			Updates(map[string]interface{}{"status": InviteStatusAccepted, "accepted_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("invite already used")
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   partnerId,
			Action:      "team_invite_accepted",
			Category:    ActivityCategoryTeam,
			Title:       "Team member joined",
			Description: invite.Email + " joined as " + string(invite.Role),
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExpireStaleInvites flips overdue pending invites; run by the cleanup job.
func ExpireStaleInvites(ctx context.Context, now time.Time) (int64, error) {
	db := config.GetDB().WithContext(crossTenant(ctx))
	res := db.Model(&PendingInvite{}).
		Where("status = ? AND expires_at <= ?", InviteStatusPending, now).
		Update("status", InviteStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	res2 := db.Model(&PartnershipInvite{}).
		Where("status = ? AND expires_at <= ?", InviteStatusPending, now).
		Update("status", InviteStatusExpired)
	if res2.Error != nil {
		return res.RowsAffected, res2.Error
	}
	return res.RowsAffected + res2.RowsAffected, nil
}
