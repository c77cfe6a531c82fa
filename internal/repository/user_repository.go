package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-service/internal/apperrors"
	"account-service/internal/models"

	"github.com/rs/zerolog"
)

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone_number, u.role,
		u.is_email_verified, u.is_phone_verified, u.is_active,
		u.province, u.district, u.municipality, u.ward_no,
		u.created_at, u.updated_at, u.last_login,
		p.avatar, p.date_of_birth, p.company_name, p.pan_vat_number, p.seller_license,
		p.facebook_url, p.twitter_url, p.receive_marketing_emails, p.receive_sms_notifications
	FROM users u
	JOIN user_profile p ON p.user_id = u.id`

type SQLUserRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  zerolog.Logger
}

func NewSQLUserRepository(db *sql.DB, dialect Dialect, logger zerolog.Logger) *SQLUserRepository {
	return &SQLUserRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

func (r *SQLUserRepository) Create(ctx context.Context, user *models.User, profile *models.Profile) (*models.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error starting user creation transaction")
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	args := []interface{}{
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.PhoneNumber, string(user.Role),
		user.IsEmailVerified, user.IsPhoneVerified, user.IsActive,
		user.Province, user.District, user.Municipality, user.WardNo, now, now,
	}
	insert := `INSERT INTO users (email, password_hash, first_name, last_name, phone_number, role,
		is_email_verified, is_phone_verified, is_active, province, district, municipality, ward_no,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var userID int64
	if r.dialect.Returning {
		err = tx.QueryRowContext(ctx, r.dialect.Rebind(insert+" RETURNING id"), args...).Scan(&userID)
	} else {
		var result sql.Result
		result, err = tx.ExecContext(ctx, insert, args...)
		if err == nil {
			userID, err = result.LastInsertId()
		}
	}
	if err != nil {
		if conflict := r.dialect.conflict(err); conflict != nil {
			return nil, conflict
		}
		r.logger.Error().Err(err).Msg("Error creating user")
		return nil, unavailable(err)
	}

	_, err = tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO user_profile (user_id, avatar, date_of_birth,
		company_name, pan_vat_number, seller_license, facebook_url, twitter_url,
		receive_marketing_emails, receive_sms_notifications) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		userID, profile.Avatar, profile.DateOfBirth, profile.CompanyName, profile.PanVatNumber,
		profile.SellerLicense, profile.FacebookURL, profile.TwitterURL,
		profile.ReceiveMarketingEmails, profile.ReceiveSMSNotifications,
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("Error creating user profile")
		return nil, unavailable(err)
	}

	if err = tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Error committing user creation")
		return nil, unavailable(err)
	}

	return r.FindByID(ctx, userID)
}

func (r *SQLUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(selectUser+" WHERE u.id = ?"), id)
	return r.scanOne(row)
}

func (r *SQLUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(selectUser+" WHERE u.email = ?"), models.NormalizeEmail(email))
	return r.scanOne(row)
}

func (r *SQLUserRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		r.dialect.Rebind("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"),
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", id).Msg("Error updating password")
		return unavailable(err)
	}
	return expectRow(result)
}

func (r *SQLUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind("UPDATE users SET last_login = ? WHERE id = ?"), at.UTC(), id)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *SQLUserRepository) Update(ctx context.Context, id int64, upd models.AdminUserUpdate, profile *models.ProfileUpdate) (*models.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	set := userAssignments(upd)
	if len(set.columns) > 0 {
		set.add("updated_at", time.Now().UTC())
		query := "UPDATE users SET " + set.clause() + " WHERE id = ?"
		if _, err = tx.ExecContext(ctx, r.dialect.Rebind(query), append(set.args, id)...); err != nil {
			if conflict := r.dialect.conflict(err); conflict != nil {
				return nil, conflict
			}
			r.logger.Error().Err(err).Int64("user_id", id).Msg("Error updating user")
			return nil, unavailable(err)
		}
	}

	if profile != nil {
		pset := profileAssignments(*profile)
		if len(pset.columns) > 0 {
			query := "UPDATE user_profile SET " + pset.clause() + " WHERE user_id = ?"
			if _, err = tx.ExecContext(ctx, r.dialect.Rebind(query), append(pset.args, id)...); err != nil {
				r.logger.Error().Err(err).Int64("user_id", id).Msg("Error updating profile")
				return nil, unavailable(err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, unavailable(err)
	}
	return r.FindByID(ctx, id)
}

func (r *SQLUserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", id).Msg("Error deleting user")
		return unavailable(err)
	}
	return expectRow(result)
}

func (r *SQLUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("Error counting users")
		return nil, 0, unavailable(err)
	}

	rows, err := r.db.QueryContext(ctx,
		r.dialect.Rebind(selectUser+" ORDER BY u.created_at DESC, u.id DESC LIMIT ? OFFSET ?"),
		limit, offset,
	)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error listing users")
		return nil, 0, unavailable(err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, unavailable(err)
	}
	return users, total, nil
}

func (r *SQLUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SQLUserRepository) scanOne(row rowScanner) (*models.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("Error fetching user")
		return nil, unavailable(err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		p         models.Profile
		role      string
		phone     sql.NullString
		wardNo    sql.NullInt64
		lastLogin sql.NullTime
		dob       sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone, &role,
		&u.IsEmailVerified, &u.IsPhoneVerified, &u.IsActive,
		&u.Province, &u.District, &u.Municipality, &wardNo,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin,
		&p.Avatar, &dob, &p.CompanyName, &p.PanVatNumber, &p.SellerLicense,
		&p.FacebookURL, &p.TwitterURL, &p.ReceiveMarketingEmails, &p.ReceiveSMSNotifications,
	)
	if err != nil {
		return nil, err
	}

	u.Role = models.UserRole(role)
	if phone.Valid {
		u.PhoneNumber = &phone.String
	}
	if wardNo.Valid {
		ward := int(wardNo.Int64)
		u.WardNo = &ward
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	if dob.Valid {
		p.DateOfBirth = &dob.Time
	}
	p.UserID = u.ID
	u.Profile = &p
	return &u, nil
}

type assignments struct {
	columns []string
	args    []interface{}
}

func (a *assignments) add(column string, value interface{}) {
	a.columns = append(a.columns, column+" = ?")
	a.args = append(a.args, value)
}

func (a *assignments) clause() string {
	return strings.Join(a.columns, ", ")
}

func userAssignments(upd models.AdminUserUpdate) assignments {
	var a assignments
	if upd.FirstName != nil {
		a.add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		a.add("last_name", *upd.LastName)
	}
	if upd.PhoneNumber != nil {
		if *upd.PhoneNumber == "" {
			a.add("phone_number", nil)
		} else {
			a.add("phone_number", *upd.PhoneNumber)
		}
	}
	if upd.Province != nil {
		a.add("province", *upd.Province)
	}
	if upd.District != nil {
		a.add("district", *upd.District)
	}
	if upd.Municipality != nil {
		a.add("municipality", *upd.Municipality)
	}
	if upd.WardNo != nil {
		a.add("ward_no", *upd.WardNo)
	}
	if upd.Role != nil {
		a.add("role", string(*upd.Role))
	}
	if upd.IsActive != nil {
		a.add("is_active", *upd.IsActive)
	}
	if upd.IsEmailVerified != nil {
		a.add("is_email_verified", *upd.IsEmailVerified)
	}
	if upd.IsPhoneVerified != nil {
		a.add("is_phone_verified", *upd.IsPhoneVerified)
	}
	return a
}

func profileAssignments(upd models.ProfileUpdate) assignments {
	var a assignments
	if upd.Avatar != nil {
		a.add("avatar", *upd.Avatar)
	}
	if upd.DateOfBirth != nil {
		a.add("date_of_birth", *upd.DateOfBirth)
	}
	if upd.CompanyName != nil {
		a.add("company_name", *upd.CompanyName)
	}
	if upd.PanVatNumber != nil {
		a.add("pan_vat_number", *upd.PanVatNumber)
	}
	if upd.SellerLicense != nil {
		a.add("seller_license", *upd.SellerLicense)
	}
	if upd.FacebookURL != nil {
		a.add("facebook_url", *upd.FacebookURL)
	}
	if upd.TwitterURL != nil {
		a.add("twitter_url", *upd.TwitterURL)
	}
	if upd.ReceiveMarketingEmails != nil {
		a.add("receive_marketing_emails", *upd.ReceiveMarketingEmails)
	}
	if upd.ReceiveSMSNotifications != nil {
		a.add("receive_sms_notifications", *upd.ReceiveSMSNotifications)
	}
	return a
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
}
