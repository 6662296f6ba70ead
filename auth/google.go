package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nikhilsahni7/FormX/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GetGoogleUserInfo fetches the profile behind token with a client
// authorised by cfg.
func GetGoogleUserInfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*models.User, error) {
	resp, err := cfg.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed getting user info: status %d", resp.StatusCode)
	}

	var googleUser GoogleUserInfo
	if err = json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("failed decoding user info: %w", err)
	}
	if googleUser.ID == "" {
		return nil, errors.New("user info carries no id")
	}

	return &models.User{
		GoogleID: &googleUser.ID,
		Email:    googleUser.Email,
		Name:     googleUser.Name,
		Picture:  googleUser.Picture,
	}, nil
}

// CreateOrUpdateUser stores a Google user. An existing account with the
// same Google id, or failing that the same email, is updated in place.
func CreateOrUpdateUser(gdb *gorm.DB, user *models.User) error {
	var existing models.User
	err := gdb.Where("google_id = ?", user.GoogleID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && user.Email != "" {
		err = gdb.Where("email = ?", user.Email).First(&existing).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := gdb.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	existing.GoogleID = user.GoogleID
	existing.Name = user.Name
	existing.Email = user.Email
	existing.Picture = user.Picture
	if err := gdb.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	*user = existing
	return nil
}
