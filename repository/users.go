package repository

import (
	"context"
	"strings"
	"time"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

var userSorts = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
}

func (r *UserRepository) List(ctx context.Context, p ListParams) ([]models.User, int64, error) {
	p.Normalize()
	q := r.db.WithContext(ctx).Model(&models.User{}).Scopes(searchScope(p.Search, "name", "email"))

	var users []models.User
	total, err := paginate(q, p, []interface{}{p.orderBy(userSorts, "name", false), "id"}, &users)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}
	return users, total, nil
}

func (r *UserRepository) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// GetByEmail looks a user up by email, ignoring case
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// Create inserts u. A doctor account must point at an existing doctor.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.DoctorID != nil {
			if err := exists(tx, &models.Doctor{}, *u.DoctorID, "doctor"); err != nil {
				return err
			}
		}
		return tx.Create(u).Error
	})
	return translate(err, "failed to create user")
}

// Delete removes the user and its refresh tokens
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete refresh tokens")
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to delete user")
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "user %d", id)
		}
		return nil
	})
}

// SetMFA stores the TOTP secret and whether it is enforced at login
func (r *UserRepository) SetMFA(ctx context.Context, id uint, secret string, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"mfa_secret": secret, "mfa_enabled": enabled})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update mfa")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "user %d", id)
	}
	return nil
}

// TokenRepository persists refresh tokens
type TokenRepository struct {
	db *gorm.DB
}

func (r *TokenRepository) Create(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	rt := models.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt.UTC()}
	return translate(r.db.WithContext(ctx).Create(&rt).Error, "failed to store refresh token")
}

// Rotate revokes old and stores replacement for the same user. It returns
// ErrNotFound when old is unknown, revoked or expired at now.
func (r *TokenRepository) Rotate(ctx context.Context, old, replacement string, expiresAt, now time.Time) (*models.RefreshToken, error) {
	var current models.RefreshToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("token = ? AND revoked = ?", old, false).First(&current).Error
		if err != nil {
			return translate(err, "refresh token")
		}
		if !current.ExpiresAt.After(now) {
			return errors.Wrap(ErrNotFound, "refresh token expired")
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked = ?", current.ID, false).
			Update("revoked", true)
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to revoke refresh token")
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(ErrNotFound, "refresh token already used")
		}

		next := models.RefreshToken{UserID: current.UserID, Token: replacement, ExpiresAt: expiresAt.UTC()}
		return tx.Create(&next).Error
	})
	if err != nil {
		return nil, translate(err, "failed to rotate refresh token")
	}
	return &current, nil
}

// Revoke marks token unusable. Unknown tokens are ignored.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", token).Update("revoked", true).Error
	return errors.Wrap(err, "failed to revoke refresh token")
}

// PurgeExpired deletes tokens that expired before now
func (r *TokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.RefreshToken{})
	return res.RowsAffected, errors.Wrap(res.Error, "failed to purge refresh tokens")
}
