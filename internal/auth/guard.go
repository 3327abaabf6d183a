package auth

import (
	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/models"
)

// RequireAuthenticated fails with common.ErrAuthRequired when nobody is
// logged in.
func RequireAuthenticated(current *models.User) error {
	if current == nil {
		return common.ErrAuthRequired
	}
	return nil
}

// RequireOwner fails with common.ErrForbidden unless current owns the
// resource. An anonymous requester owns nothing.
func RequireOwner(current *models.User, ownerID int64) error {
	if current == nil || current.ID != ownerID {
		return common.ErrForbidden
	}
	return nil
}
