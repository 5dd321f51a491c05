package app

import (
	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
)

func requireAuthenticated(caller domain.Caller) error {
	if caller.Authenticated() {
		return nil
	}
	return ierr.NewError("caller not authenticated").
		WithHint("Please sign in to continue.").
		Mark(ierr.ErrAuthentication)
}

func requireAdmin(caller domain.Caller) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if caller.IsAdmin() {
		return nil
	}
	return ierr.NewError("admin role required").
		WithHint("You do not have permission to perform this action.").
		Mark(ierr.ErrPermissionDenied)
}

func permissionDenied(resource string) error {
	return ierr.NewError(resource+" not owned by caller").
		WithHintf("You do not have access to this %s.", resource).
		Mark(ierr.ErrPermissionDenied)
}
