package models

import "time"

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	PhoneNumber     *string    `json:"phone_number"`
	Role            UserRole   `json:"role"`
	IsEmailVerified bool       `json:"is_email_verified"`
	IsPhoneVerified bool       `json:"is_phone_verified"`
	IsActive        bool       `json:"is_active"`
	Province        string     `json:"province"`
	District        string     `json:"district"`
	Municipality    string     `json:"municipality"`
	WardNo          *int       `json:"ward_no"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastLogin       *time.Time `json:"last_login"`
	Profile         *Profile   `json:"profile,omitempty"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleSeller   UserRole = "seller"
	RoleAdmin    UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}

type Profile struct {
	UserID                  int64      `json:"-"`
	Avatar                  string     `json:"avatar"`
	DateOfBirth             *time.Time `json:"date_of_birth"`
	CompanyName             string     `json:"company_name"`
	PanVatNumber            string     `json:"pan_vat_number"`
	SellerLicense           string     `json:"seller_license"`
	FacebookURL             string     `json:"facebook_url"`
	TwitterURL              string     `json:"twitter_url"`
	ReceiveMarketingEmails  bool       `json:"receive_marketing_emails"`
	ReceiveSMSNotifications bool       `json:"receive_sms_notifications"`
}

// NewProfile returns the empty profile created alongside every user.
func NewProfile() *Profile {
	return &Profile{
		ReceiveMarketingEmails:  true,
		ReceiveSMSNotifications: true,
	}
}

// UserUpdate is the set of account fields an owner may change. Nil means
// unchanged. Email and role are deliberately absent.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	PhoneNumber  *string
	Province     *string
	District     *string
	Municipality *string
	WardNo       *int
}

// AdminUserUpdate extends UserUpdate with the fields only admins may touch.
type AdminUserUpdate struct {
	UserUpdate
	Role            *UserRole
	IsActive        *bool
	IsEmailVerified *bool
	IsPhoneVerified *bool
}

type ProfileUpdate struct {
	Avatar                  *string
	DateOfBirth             *time.Time
	CompanyName             *string
	PanVatNumber            *string
	SellerLicense           *string
	FacebookURL             *string
	TwitterURL              *string
	ReceiveMarketingEmails  *bool
	ReceiveSMSNotifications *bool
}

// Apply copies the non-nil fields of upd onto u.
func (u *User) Apply(upd AdminUserUpdate) {
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.PhoneNumber != nil {
		if *upd.PhoneNumber == "" {
			u.PhoneNumber = nil
		} else {
			phone := *upd.PhoneNumber
			u.PhoneNumber = &phone
		}
	}
	if upd.Province != nil {
		u.Province = *upd.Province
	}
	if upd.District != nil {
		u.District = *upd.District
	}
	if upd.Municipality != nil {
		u.Municipality = *upd.Municipality
	}
	if upd.WardNo != nil {
		ward := *upd.WardNo
		u.WardNo = &ward
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.IsEmailVerified != nil {
		u.IsEmailVerified = *upd.IsEmailVerified
	}
	if upd.IsPhoneVerified != nil {
		u.IsPhoneVerified = *upd.IsPhoneVerified
	}
}

func (p *Profile) Apply(upd ProfileUpdate) {
	if upd.Avatar != nil {
		p.Avatar = *upd.Avatar
	}
	if upd.DateOfBirth != nil {
		dob := *upd.DateOfBirth
		p.DateOfBirth = &dob
	}
	if upd.CompanyName != nil {
		p.CompanyName = *upd.CompanyName
	}
	if upd.PanVatNumber != nil {
		p.PanVatNumber = *upd.PanVatNumber
	}
	if upd.SellerLicense != nil {
		p.SellerLicense = *upd.SellerLicense
	}
	if upd.FacebookURL != nil {
		p.FacebookURL = *upd.FacebookURL
	}
	if upd.TwitterURL != nil {
		p.TwitterURL = *upd.TwitterURL
	}
	if upd.ReceiveMarketingEmails != nil {
		p.ReceiveMarketingEmails = *upd.ReceiveMarketingEmails
	}
	if upd.ReceiveSMSNotifications != nil {
		p.ReceiveSMSNotifications = *upd.ReceiveSMSNotifications
	}
}

type UserPage struct {
	Count    int     `json:"count"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Results  []*User `json:"results"`
}
