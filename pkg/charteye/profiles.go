package charteye

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const defaultTestUpgradeKey = "test-upgrade-key-123"

const profileColumns = `user_id, display_name, email, account_status, upload_count, created_at, updated_at`

// GetUserProfile returns the profile for userID, creating a Free profile on first read.
func (c *Core) GetUserProfile(userID string) (*UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewError(ErrCodeInvalidInput, "user id is required")
	}
	if err := c.ensureProfile(userID); err != nil {
		return nil, err
	}
	return c.loadProfile(userID)
}

// UpdateUserProfile changes the editable fields of a profile.
func (c *Core) UpdateUserProfile(userID string, update ProfileUpdate) (*UserProfile, error) {
	profile, err := c.GetUserProfile(userID)
	if err != nil {
		return nil, err
	}
	if update.DisplayName != nil {
		profile.DisplayName = defaultString(*update.DisplayName, "User")
	}
	if update.Email != nil {
		profile.Email = strings.TrimSpace(*update.Email)
	}
	if _, err := c.db.Exec(
		`UPDATE user_profiles SET display_name = ?, email = ?, updated_at = ? WHERE user_id = ?`,
		profile.DisplayName, profile.Email, c.timestamp(), profile.UserID,
	); err != nil {
		return nil, WrapError(ErrCodeDatabase, "update profile", err)
	}
	return c.loadProfile(profile.UserID)
}

// UpgradeToPremium moves a profile to the Premium tier. Upgrading a Premium profile is a no-op.
func (c *Core) UpgradeToPremium(userID string) (*UserProfile, error) {
	profile, err := c.GetUserProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile.AccountStatus == AccountPremium {
		return profile, nil
	}
	if _, err := c.db.Exec(
		`UPDATE user_profiles SET account_status = ?, updated_at = ? WHERE user_id = ?`,
		string(AccountPremium), c.timestamp(), profile.UserID,
	); err != nil {
		return nil, WrapError(ErrCodeDatabase, "upgrade profile", err)
	}
	c.logger.Info("profile upgraded", "user_id", profile.UserID)
	return c.loadProfile(profile.UserID)
}

// TestUpgrade upgrades userID when testKey matches the configured test key.
func (c *Core) TestUpgrade(userID, testKey string) (*UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewError(ErrCodeInvalidInput, "Missing userId")
	}
	if testKey != c.testUpgradeKey {
		return nil, NewError(ErrCodeUnauthorized, "Invalid test key")
	}
	return c.UpgradeToPremium(userID)
}

// reserveUpload counts one upload against the profile. Free profiles at the cap are rejected
// without touching the counter; the check and increment happen in one statement.
func (c *Core) reserveUpload(userID string) (*UserProfile, error) {
	if err := c.ensureProfile(userID); err != nil {
		return nil, err
	}
	result, err := c.db.Exec(
		`UPDATE user_profiles
		 SET upload_count = upload_count + 1, updated_at = ?
		 WHERE user_id = ? AND (account_status = ? OR upload_count < ?)`,
		c.timestamp(), userID, string(AccountPremium), c.freeUploadLimit,
	)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "reserve upload", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "reserve upload", err)
	}
	if affected == 0 {
		c.logger.Warn("upload limit reached", "user_id", userID, "limit", c.freeUploadLimit)
		return nil, NewError(ErrCodeLimitExceeded,
			fmt.Sprintf("Free accounts are limited to %d chart uploads. Upgrade to Premium for unlimited uploads.", c.freeUploadLimit))
	}
	return c.loadProfile(userID)
}

// releaseUpload returns a reserved upload when the upload did not produce a record.
func (c *Core) releaseUpload(userID string) {
	if _, err := c.db.Exec(
		`UPDATE user_profiles SET upload_count = MAX(upload_count - 1, 0), updated_at = ? WHERE user_id = ?`,
		c.timestamp(), userID,
	); err != nil {
		c.logger.Error("release upload failed", "user_id", userID, "err", err)
	}
}

func (c *Core) ensureProfile(userID string) error {
	now := c.timestamp()
	if _, err := c.db.Exec(
		`INSERT OR IGNORE INTO user_profiles (user_id, display_name, email, account_status, upload_count, created_at, updated_at)
		 VALUES (?, 'User', '', ?, 0, ?, ?)`,
		userID, string(AccountFree), now, now,
	); err != nil {
		return WrapError(ErrCodeDatabase, "create profile", err)
	}
	return nil
}

func (c *Core) loadProfile(userID string) (*UserProfile, error) {
	var (
		profile UserProfile
		status  string
	)
	err := c.db.QueryRow(`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.Email,
		&status,
		&profile.UploadCount,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewError(ErrCodeNotFound, "profile not found")
	}
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "load profile", err)
	}
	profile.AccountStatus = AccountStatus(status)
	return &profile, nil
}
