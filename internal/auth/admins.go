package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/utils"
)

// EnsureAdmins gives each address in emails the admin role before the server
// accepts registrations. Existing accounts are promoted. Missing ones are
// created with password when it is set and skipped otherwise; either way the
// address stays closed to self-registration.
func EnsureAdmins(ctx context.Context, users UserStore, emails []string, password string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, raw := range emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}
		u, err := users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if u.Role == models.RoleAdmin {
				continue
			}
			if err := users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
				return fmt.Errorf("promote %s: %w", email, err)
			}
			logger.Info("promoted admin", zap.String("email", email))
		case errors.Is(err, models.ErrNotFound):
			if password == "" {
				logger.Warn("admin account missing and ADMIN_PASSWORD unset", zap.String("email", email))
				continue
			}
			hash, err := utils.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			if _, err := users.Create(ctx, email, hash, "Administrator", models.RoleAdmin); err != nil {
				return fmt.Errorf("create admin %s: %w", email, err)
			}
			logger.Info("created admin", zap.String("email", email))
		default:
			return fmt.Errorf("load admin %s: %w", email, err)
		}
	}
	return nil
}
