package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/dbx"
)

func netErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrNetwork, err)
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return netErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrorNotFound)
	}
	return nil
}

type PostgresAdminRepository struct {
	db dbx.DBTX
}

func NewPostgresAdminRepository(db dbx.DBTX) *PostgresAdminRepository {
	return &PostgresAdminRepository{db: db}
}

func (r *PostgresAdminRepository) GetAdminStatus(ctx context.Context) (AdminStatus, error) {
	query :=
		`SELECT website_visibility, agreement, email, address, history_credit
		 FROM bank_admin
		 WHERE id = $1
		 `

	var (
		st             AdminStatus
		email, address sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, common.AdminRowID).
		Scan(&st.SiteVisible, &st.AgreementAccepted, &email, &address, &st.HistoryCredit)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminStatus{}, common.ErrorNotFound
		}
		return AdminStatus{}, netErr("get admin status", err)
	}

	st.ContactEmail = email.String
	st.ContactAddress = address.String
	return st, nil
}

func (r *PostgresAdminRepository) SetAgreement(ctx context.Context, accepted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_admin SET agreement = $2 WHERE id = $1`, common.AdminRowID, accepted)
	if err != nil {
		return netErr("set agreement", err)
	}
	return expectOneRow("set agreement", res)
}

func (r *PostgresAdminRepository) SetSiteVisibility(ctx context.Context, visible bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_admin SET website_visibility = $2 WHERE id = $1`, common.AdminRowID, visible)
	if err != nil {
		return netErr("set site visibility", err)
	}
	return expectOneRow("set site visibility", res)
}

func (r *PostgresAdminRepository) SetContact(ctx context.Context, email, address string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_admin SET email = $2, address = $3 WHERE id = $1`, common.AdminRowID, email, address)
	if err != nil {
		return netErr("set contact", err)
	}
	return expectOneRow("set contact", res)
}

type PostgresAccountRepository struct {
	db dbx.DBTX
}

func NewPostgresAccountRepository(db dbx.DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) GetAccountStatus(ctx context.Context, uuid string) (AccountStatus, error) {
	query :=
		`SELECT uuid, activeuser, pin FROM bank_users
		 WHERE uuid = $1
		 `

	var (
		st  AccountStatus
		pin sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, uuid).Scan(&st.UUID, &st.Active, &pin)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccountStatus{}, common.ErrorNotFound
		}
		return AccountStatus{}, netErr("get account status", err)
	}

	st.PIN = pin.String
	return st, nil
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	query :=
		`SELECT id, uuid, email, first_name, last_name, pin, activeuser FROM bank_users
		 WHERE lower(email) = lower($1)
		 `

	var (
		a      Account
		pin    sql.NullString
		active ActiveFlag
	)
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&a.ID, &a.UUID, &a.Email, &a.FirstName, &a.LastName, &pin, &active)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, common.ErrorNotFound
		}
		return Account{}, netErr("find account", err)
	}

	a.PIN = pin.String
	a.Active = !active.Restricted()
	return a, nil
}

func (r *PostgresAccountRepository) SetActive(ctx context.Context, uuid string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_users SET activeuser = $2 WHERE uuid = $1`, uuid, Active(active))
	if err != nil {
		return netErr("set active", err)
	}
	return expectOneRow("set active", res)
}

func (r *PostgresAccountRepository) SetPIN(ctx context.Context, uuid, pin string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_users SET pin = $2 WHERE uuid = $1`, uuid, pin)
	if err != nil {
		return netErr("set pin", err)
	}
	return expectOneRow("set pin", res)
}

func (r *PostgresAccountRepository) Create(ctx context.Context, a *Account) (*Account, error) {
	query :=
		`INSERT INTO bank_users (uuid, email, first_name, last_name, pin, activeuser)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.UUID, a.Email, a.FirstName, a.LastName, a.PIN, Active(a.Active)).Scan(&a.ID)

	if err != nil {
		return nil, netErr("create account", err)
	}

	return a, nil
}
