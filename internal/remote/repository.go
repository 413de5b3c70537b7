package remote

import (
	"context"
)

// AdminRepository reads and writes the admin configuration row.
type AdminRepository interface {
	GetAdminStatus(ctx context.Context) (AdminStatus, error)
	SetAgreement(ctx context.Context, accepted bool) error
	SetSiteVisibility(ctx context.Context, visible bool) error
	SetContact(ctx context.Context, email, address string) error
}

// AccountRepository reads and writes customer account rows.
type AccountRepository interface {
	GetAccountStatus(ctx context.Context, uuid string) (AccountStatus, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	SetActive(ctx context.Context, uuid string, active bool) error
	SetPIN(ctx context.Context, uuid, pin string) error
	Create(ctx context.Context, account *Account) (*Account, error)
}
