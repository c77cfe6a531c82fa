package models

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"account-service/internal/apperrors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// PhonePattern accepts an optional leading "+" and country code followed by
// 9 to 15 digits.
var PhonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

const (
	msgPasswordMismatch = "passwords do not match"
	msgPhoneFormat      = "phone number must be entered in the format '+977XXXXXXXXX', 9 to 15 digits allowed"
	msgSellerPhone      = "phone number is required for seller"
	dateLayout          = "2006-01-02"
)

var passwordRules = []validation.Rule{
	validation.Required.Error("this field is required"),
	validation.Length(8, 72).Error("password must be 8-72 characters"),
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
	PhoneNumber     string `json:"phone_number"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Province        string `json:"province"`
	District        string `json:"district"`
	Municipality    string `json:"municipality"`
	WardNo          *int   `json:"ward_no"`
}

// Normalize lower-cases the login handle and trims free text fields. Role
// defaults to customer.
func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	if r.Role == "" {
		r.Role = string(RoleCustomer)
	}
}

func (r RegisterRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("this field is required"),
			is.EmailFormat.Error("enter a valid email address"),
			validation.Length(3, 254),
		),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.ConfirmPassword, validation.Required.Error("this field is required")),
		validation.Field(&r.Role,
			validation.In(string(RoleCustomer), string(RoleSeller), string(RoleAdmin)).Error("not a valid choice"),
		),
		validation.Field(&r.PhoneNumber,
			validation.When(r.Role == string(RoleSeller), validation.Required.Error(msgSellerPhone)),
			validation.When(r.PhoneNumber != "", validation.Match(PhonePattern).Error(msgPhoneFormat)),
		),
		validation.Field(&r.FirstName, validation.Length(0, 150)),
		validation.Field(&r.LastName, validation.Length(0, 150)),
		validation.Field(&r.Province, validation.Length(0, 50)),
		validation.Field(&r.District, validation.Length(0, 50)),
		validation.Field(&r.Municipality, validation.Length(0, 50)),
		validation.Field(&r.WardNo, validation.Min(1)),
	)
	verr := ToValidationError(err)
	if verr != nil && !isFieldErrors(verr) {
		return verr
	}

	fields := asFieldErrors(verr)
	if r.ConfirmPassword != "" && r.Password != r.ConfirmPassword {
		fields.Add("confirm_password", msgPasswordMismatch)
	}
	if fields.HasErrors() {
		return fields
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return ToValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("this field is required"), is.EmailFormat.Error("enter a valid email address")),
		validation.Field(&r.Password, validation.Required.Error("this field is required")),
	))
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

func (r RefreshRequest) Validate() error {
	return ToValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Refresh, validation.Required.Error("this field is required")),
	))
}

type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (r ChangePasswordRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required.Error("this field is required")),
		validation.Field(&r.NewPassword, passwordRules...),
		validation.Field(&r.ConfirmNewPassword, validation.Required.Error("this field is required")),
	)
	return withConfirmation(err, r.NewPassword, r.ConfirmNewPassword, "confirm_new_password")
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

func (r PasswordResetRequest) Validate() error {
	return ToValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("this field is required"), is.EmailFormat.Error("enter a valid email address")),
	))
}

type PasswordResetConfirmRequest struct {
	UIDB64             string `json:"uidb64"`
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (r PasswordResetConfirmRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.UIDB64, validation.Required.Error("this field is required")),
		validation.Field(&r.Token, validation.Required.Error("this field is required")),
		validation.Field(&r.NewPassword, passwordRules...),
		validation.Field(&r.ConfirmNewPassword, validation.Required.Error("this field is required")),
	)
	return withConfirmation(err, r.NewPassword, r.ConfirmNewPassword, "confirm_new_password")
}

type ProfileFields struct {
	Avatar                  *string `json:"avatar"`
	DateOfBirth             *string `json:"date_of_birth"`
	CompanyName             *string `json:"company_name"`
	PanVatNumber            *string `json:"pan_vat_number"`
	SellerLicense           *string `json:"seller_license"`
	FacebookURL             *string `json:"facebook_url"`
	TwitterURL              *string `json:"twitter_url"`
	ReceiveMarketingEmails  *bool   `json:"receive_marketing_emails"`
	ReceiveSMSNotifications *bool   `json:"receive_sms_notifications"`
}

func (p ProfileFields) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Avatar, validation.Length(0, 255)),
		validation.Field(&p.DateOfBirth, validation.Date(dateLayout).Error("date must be in YYYY-MM-DD format")),
		validation.Field(&p.CompanyName, validation.Length(0, 100)),
		validation.Field(&p.PanVatNumber, validation.Length(0, 50)),
		validation.Field(&p.SellerLicense, validation.Length(0, 50)),
		validation.Field(&p.FacebookURL, is.URL.Error("enter a valid URL")),
		validation.Field(&p.TwitterURL, is.URL.Error("enter a valid URL")),
	)
}

// ToUpdate converts validated input into the whitelisted profile update.
func (p ProfileFields) ToUpdate() ProfileUpdate {
	upd := ProfileUpdate{
		Avatar:                  p.Avatar,
		CompanyName:             p.CompanyName,
		PanVatNumber:            p.PanVatNumber,
		SellerLicense:           p.SellerLicense,
		FacebookURL:             p.FacebookURL,
		TwitterURL:              p.TwitterURL,
		ReceiveMarketingEmails:  p.ReceiveMarketingEmails,
		ReceiveSMSNotifications: p.ReceiveSMSNotifications,
	}
	if p.DateOfBirth != nil && *p.DateOfBirth != "" {
		if dob, err := time.Parse(dateLayout, *p.DateOfBirth); err == nil {
			upd.DateOfBirth = &dob
		}
	}
	return upd
}

// UpdateProfileRequest is the body of PUT /profile. Email is read-only and
// ignored if sent.
type UpdateProfileRequest struct {
	FirstName    *string        `json:"first_name"`
	LastName     *string        `json:"last_name"`
	PhoneNumber  *string        `json:"phone_number"`
	Province     *string        `json:"province"`
	District     *string        `json:"district"`
	Municipality *string        `json:"municipality"`
	WardNo       *int           `json:"ward_no"`
	Profile      *ProfileFields `json:"profile"`
}

func (r UpdateProfileRequest) Validate() error {
	return ToValidationError(validation.ValidateStruct(&r, r.fieldRules()...))
}

func (r *UpdateProfileRequest) fieldRules() []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&r.FirstName, validation.Length(0, 150)),
		validation.Field(&r.LastName, validation.Length(0, 150)),
		validation.Field(&r.PhoneNumber,
			validation.When(r.PhoneNumber != nil && *r.PhoneNumber != "", validation.Match(PhonePattern).Error(msgPhoneFormat)),
		),
		validation.Field(&r.Province, validation.Length(0, 50)),
		validation.Field(&r.District, validation.Length(0, 50)),
		validation.Field(&r.Municipality, validation.Length(0, 50)),
		validation.Field(&r.WardNo, validation.Min(1)),
		validation.Field(&r.Profile),
	}
}

func (r UpdateProfileRequest) ToUpdate() UserUpdate {
	upd := UserUpdate{
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Province:     r.Province,
		District:     r.District,
		Municipality: r.Municipality,
		WardNo:       r.WardNo,
	}
	if r.PhoneNumber != nil {
		phone := strings.TrimSpace(*r.PhoneNumber)
		upd.PhoneNumber = &phone
	}
	return upd
}

// AdminUpdateUserRequest is the body of PUT /user/{id}.
type AdminUpdateUserRequest struct {
	UpdateProfileRequest
	Role            *string `json:"role"`
	IsActive        *bool   `json:"is_active"`
	IsEmailVerified *bool   `json:"is_email_verified"`
	IsPhoneVerified *bool   `json:"is_phone_verified"`
}

func (r AdminUpdateUserRequest) Validate() error {
	rules := r.UpdateProfileRequest.fieldRules()
	rules = append(rules, validation.Field(&r.Role,
		validation.In(string(RoleCustomer), string(RoleSeller), string(RoleAdmin)).Error("not a valid choice"),
	))
	return ToValidationError(validation.ValidateStruct(&r, rules...))
}

func (r AdminUpdateUserRequest) ToUpdate() AdminUserUpdate {
	upd := AdminUserUpdate{
		UserUpdate:      r.UpdateProfileRequest.ToUpdate(),
		IsActive:        r.IsActive,
		IsEmailVerified: r.IsEmailVerified,
		IsPhoneVerified: r.IsPhoneVerified,
	}
	if r.Role != nil {
		role := UserRole(*r.Role)
		upd.Role = &role
	}
	return upd
}

type AuthResponse struct {
	User    *User  `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Message string `json:"message,omitempty"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ToValidationError flattens ozzo-validation field errors into the service's
// ValidationError. Internal rule failures are returned unchanged.
func ToValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	verr := &apperrors.ValidationError{}
	flatten(verr, "", errs)
	return verr
}

func flatten(verr *apperrors.ValidationError, prefix string, errs validation.Errors) {
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			flatten(verr, key, nested)
			continue
		}
		verr.Add(key, fieldErr.Error())
	}
}

func withConfirmation(err error, password, confirmation, field string) error {
	verr := ToValidationError(err)
	if verr != nil && !isFieldErrors(verr) {
		return verr
	}
	fields := asFieldErrors(verr)
	if confirmation != "" && password != confirmation {
		fields.Add(field, msgPasswordMismatch)
	}
	if fields.HasErrors() {
		return fields
	}
	return nil
}

func isFieldErrors(err error) bool {
	var verr *apperrors.ValidationError
	return errors.As(err, &verr)
}

func asFieldErrors(err error) *apperrors.ValidationError {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &apperrors.ValidationError{}
}
