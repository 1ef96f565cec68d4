package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

// User is keyed by the Firebase UID. Editors have no PartnerId; they reach
// tenants through Partnership rows.
type User struct {
	ID        string     `gorm:"primaryKey;size:128" json:"uid"`
	Email     string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Name      string     `gorm:"size:255" json:"name"`
	Role      UserRole   `gorm:"size:20;not null;index" json:"role"`
	PartnerId *string    `gorm:"size:64;index" json:"partnerId"`
	Status    UserStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u User) GetPartnerId() string {
	return utils.DereferencePtr(u.PartnerId)
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

type NewRegistration struct {
	Name string   `json:"name" binding:"required"`
	Role UserRole `json:"role"`
}

type UpdateTeamUserInput struct {
	Name   *string     `json:"name"`
	Role   *UserRole   `json:"role"`
	Status *UserStatus `json:"status"`
}

/*
caches:
	User:$uid
*/

const userCacheTTL = 10 * time.Minute

func userCacheKey(uid string) string {
	return "User:" + uid
}

func (u User) RemoveInstanceRedis(ctx context.Context) error {
	return config.RemoveRedisKey(ctx, userCacheKey(u.ID))
}

// GetUserByUid reads through the Redis cache. Returns ErrorRecordNotFound for
// unknown uids (signed in with Firebase but never registered or invited).
func GetUserByUid(ctx context.Context, uid string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject(ctx, userCacheKey(uid), &user)
	if err != nil {
		config.LogError(config.GetLogger(), "UserModel", "GetUserByUid", "read user cache", uid, err)
	}
	if exists {
		return &user, nil
	}

	err = config.GetDB().WithContext(crossTenant(ctx)).Where("id = ?", uid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := config.SetRedisObject(ctx, userCacheKey(uid), &user, userCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "UserModel", "GetUserByUid", "write user cache", uid, err)
	}
	return &user, nil
}

// CurrentUser loads the authenticated caller's user row.
func CurrentUser(ctx context.Context) (*User, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	user, err := GetUserByUid(ctx, uid)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.Forbidden("user is not registered")
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, utils.Forbidden("user is suspended")
	}
	return user, nil
}

// RegisterUser creates the caller's own user row: a partner owning a fresh
// tenant, or a partnerless editor. Other roles only join through invites.
func RegisterUser(ctx context.Context, input *NewRegistration) (*User, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	email, _ := utils.GetUserEmailFromContext(ctx)
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, utils.BadRequest("verified email is required")
	}
	if input.Role == "" {
		input.Role = UserRolePartner
	}
	if input.Role != UserRolePartner && input.Role != UserRoleEditor {
		return nil, utils.BadRequest("only partner or editor accounts can self-register")
	}

	if _, err := GetUserByUid(ctx, uid); err == nil {
		return nil, utils.Conflict("user already registered")
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	user := User{
		ID:     uid,
		Email:  email,
		Name:   strings.TrimSpace(input.Name),
		Role:   input.Role,
		Status: UserStatusActive,
	}
	if input.Role == UserRolePartner {
		partnerId := newId()
		user.PartnerId = &partnerId
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetTeamUsers(ctx context.Context) ([]*User, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	var users []*User
	err = config.GetDB().WithContext(ctx).
		Where("partner_id = ?", partnerId).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

// UpdateTeamUser changes name/role/status of a tenant member. PartnerId is
// never writable here.
func UpdateTeamUser(ctx context.Context, uid string, input *UpdateTeamUserInput) (*User, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	user, err := GetResource[User](ctx, uid)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Role != nil {
		if !input.Role.IsValid() || *input.Role == UserRoleEditor {
			return nil, utils.BadRequest("invalid role")
		}
		updates["role"] = *input.Role
	}
	if input.Status != nil {
		if *input.Status != UserStatusActive && *input.Status != UserStatusSuspended {
			return nil, utils.BadRequest("invalid status")
		}
		self, _ := utils.GetUserIdFromContext(ctx)
		if self == uid && *input.Status == UserStatusSuspended {
			return nil, utils.BadRequest("cannot suspend yourself")
		}
		updates["status"] = *input.Status
	}
	if len(updates) == 0 {
		return user, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&User{}).Where("id = ?", uid).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(ctx); err != nil {
		config.LogError(config.GetLogger(), "UserModel", "UpdateTeamUser", "remove user cache", uid, err)
	}
	if err := db.WithContext(ctx).Where("id = ?", uid).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUsersByIds is the batch function behind the user dataloader.
func GetUsersByIds(ctx context.Context, ids []string) (map[string]*User, error) {
	var users []*User
	if err := config.GetDB().WithContext(crossTenant(ctx)).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
