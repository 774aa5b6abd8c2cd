package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/billing"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// BillingProvisioner lazily ensures every authenticated user has a
// customer record in the external billing system.
//
// Idempotence comes from the persisted-id check: once a user carries a
// billing customer id, no external call is ever made again. The write is
// set-once at the store (first writer wins, losers read back the winner),
// so concurrent authentications for a brand-new user converge on one
// persisted id. The losing external customer object, if one was created,
// is orphaned on the provider side — accepted, reconciled out of band.
type BillingProvisioner struct {
	users  repository.UserRepository
	client billing.Client
	logger *slog.Logger
}

// NewBillingProvisioner creates a BillingProvisioner.
func NewBillingProvisioner(users repository.UserRepository, client billing.Client, logger *slog.Logger) *BillingProvisioner {
	return &BillingProvisioner{
		users:  users,
		client: client,
		logger: logger,
	}
}

// EnsureBillingCustomer returns the user's billing customer id, creating
// the external customer on first need. The user struct is updated in
// place so callers see the linkage without a re-read.
func (b *BillingProvisioner) EnsureBillingCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.BillingCustomerID != nil && *user.BillingCustomerID != "" {
		return *user.BillingCustomerID, nil
	}

	customerID, err := b.client.CreateCustomer(ctx, user.Name, user.Email)
	if err != nil {
		return "", apperror.BillingUnavailable(fmt.Errorf("creating customer for user %s: %w", user.ID, err))
	}

	persisted, err := b.users.SetBillingCustomerID(ctx, user.ID, customerID)
	if err != nil {
		return "", fmt.Errorf("service/billing: persisting customer id for user %s: %w", user.ID, err)
	}
	if persisted != customerID {
		b.logger.Warn("lost billing customer race, keeping persisted id",
			slog.String("userID", user.ID),
			slog.String("orphaned", customerID),
			slog.String("persisted", persisted),
		)
	}

	user.BillingCustomerID = &persisted
	return persisted, nil
}
