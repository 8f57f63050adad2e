// Package users looks up the account attributes the image service needs.
package users

import "context"

type Repository interface {
	// GetEntitlement reports whether ownerID has an active subscription.
	// An unknown user yields common.ErrorNotFound.
	GetEntitlement(ctx context.Context, ownerID string) (bool, error)
}
