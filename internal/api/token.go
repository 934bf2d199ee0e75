package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/droneedit/droneedit-agent/internal/journal"
)

// EnsureToken returns the panel token, creating and storing one on first
// use.
func EnsureToken(ctx context.Context, repo journal.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, journal.KeyPanelToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, journal.KeyPanelToken, token); err != nil {
		return "", err
	}
	return token, nil
}
