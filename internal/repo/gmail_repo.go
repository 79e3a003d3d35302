// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the GmailToken
// model holding the connected account's OAuth credentials.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// UpsertGmailToken stores credentials for an address, replacing any previous
// row for the same email.
func UpsertGmailToken(ctx context.Context, db *gorm.DB, tok *domain.GmailToken) (*domain.GmailToken, error) {
	now := time.Now().UTC()

	var existing domain.GmailToken
	err := db.WithContext(ctx).Where("email = ?", tok.Email).First(&existing).Error
	switch {
	case err == nil:
		existing.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			existing.RefreshToken = tok.RefreshToken
		}
		existing.TokenURI = tok.TokenURI
		existing.ScopesJSON = tok.ScopesJSON
		existing.Expiry = tok.Expiry
		existing.UpdatedAt = now
		if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case err == gorm.ErrRecordNotFound:
		tok.ID = uuid.NewString()
		tok.CreatedAt = now
		tok.UpdatedAt = now
		if err := db.WithContext(ctx).Create(tok).Error; err != nil {
			return nil, err
		}
		return tok, nil
	default:
		return nil, err
	}
}

// LatestGmailToken returns the most recently updated credentials, or
// ErrNotFound when no account is connected.
func LatestGmailToken(ctx context.Context, db *gorm.DB) (*domain.GmailToken, error) {
	var tok domain.GmailToken
	err := db.WithContext(ctx).Order("updated_at desc").First(&tok).Error
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// DeleteGmailTokens removes all stored credentials (disconnect).
func DeleteGmailTokens(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Where("1 = 1").Delete(&domain.GmailToken{})
	return res.RowsAffected, res.Error
}
