package user

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrUsernameExists   = errors.New("a user with this username already exists")
	ErrInvalidTOTPCode  = errors.New("invalid two-factor code")
	ErrTwoFactorPending = errors.New("two-factor setup has not been confirmed")
)

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excludedUsers ...User) error
		CreateUser(usr User) (User, error)
		QueryAllUsers() ([]User, error)
		GetUserByID(id int) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByEmail(email string) (User, error)
		GetUserByUsernameOrEmail(username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(usr User, isActive *bool) (User, error)
		UpdateLastLogin(id int, at time.Time) (User, error)
		DeleteUsersByID(ids ...int) error

		GetProfileByUserID(userID int) (Profile, error)
		CreateProfile(prof Profile) (Profile, error)
		UpdateProfile(prof Profile) (Profile, error)
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		QueryAll() ([]User, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(id int) (User, error)
		GetByUsername(uname string) (User, error)
		GetByEmail(email string) (User, error)
		GetByUsernameOrEmail(uname string) (User, error)
		SetLastLogin(usr User) (User, error)
		Update(id int, uu UpdateUser) (User, error)
		Delete(ids ...int) error
		RequestPasswordReset(email string) error
		ResetPassword(rp ResetUserPassword) error

		GetProfile(usr User) (Profile, error)
		UpdateProfile(usr User, up UpdateProfile) (Profile, error)
		SaveProfile(prof Profile) (Profile, error)
		EnableTwoFactor(usr User) (TwoFactorSetup, error)
		ConfirmTwoFactor(usr User, code string) error
		DisableTwoFactor(usr User, code string) error
		VerifyTwoFactor(usr User, code string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		tfaSvc  core.TwoFactorService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, tfaSvc core.TwoFactorService) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		tfaSvc:  tfaSvc,
	}
}

// TwoFactorSetup is returned when two-factor setup begins; the secret stays
// pending until the first code is confirmed.
type TwoFactorSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(usr)
}

func (svc *service) QueryAll() ([]User, error) {
	return svc.repo.QueryAllUsers()
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil || filter.IsEmpty() {
		if len(ordering) == 0 {
			return svc.repo.QueryAllUsers()
		}
		filter = new(QueryFilter)
	}
	return svc.repo.FilterUsers(*filter, ordering...)
}

func (svc *service) GetByID(id int) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
}

func (svc *service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(core.CleanString(uname, true /* lower */))
}

func (svc *service) SetLastLogin(usr User) (User, error) {
	return svc.repo.UpdateLastLogin(usr.ID, time.Now().UTC())
}

func (svc *service) Update(id int, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(usr, uu.IsActive)
}

func (svc *service) Delete(ids ...int) error {
	return svc.repo.DeleteUsersByID(ids...)
}

func (svc *service) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		return
	}
	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", core.Conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password Reset",
		BodyStr: "You requested a password reset. Follow this link to choose a new password: " + url,
	})
}

func (svc *service) ResetPassword(rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(usr, nil)
	return err
}

// Profile & two-factor operations

// GetProfile returns the user's Profile, creating it on first access.
func (svc *service) GetProfile(usr User) (Profile, error) {
	prof, err := svc.repo.GetProfileByUserID(usr.ID)
	if err == ErrProfileNotFound {
		return svc.repo.CreateProfile(Profile{
			UserID:          usr.ID,
			ThemePreference: ThemeLight,
		})
	}
	return prof, err
}

func (svc *service) UpdateProfile(usr User, up UpdateProfile) (Profile, error) {
	prof, err := svc.GetProfile(usr)
	if err != nil {
		return Profile{}, err
	}
	if up.Bio != nil {
		prof.Bio = *up.Bio
	}
	if up.ThemePreference != "" {
		prof.ThemePreference = up.ThemePreference
	}
	return svc.repo.UpdateProfile(prof)
}

// SaveProfile persists an already-loaded profile as is.
func (svc *service) SaveProfile(prof Profile) (Profile, error) {
	return svc.repo.UpdateProfile(prof)
}

// EnableTwoFactor generates and persists a pending secret; two-factor is not
// considered enabled until the first code is confirmed.
func (svc *service) EnableTwoFactor(usr User) (TwoFactorSetup, error) {
	prof, err := svc.GetProfile(usr)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	label := usr.Email
	if label == "" {
		label = usr.Username
	}
	secret, err := svc.tfaSvc.GenerateSecret(label)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	prof.TwoFactorSecret.SetValid(secret)
	prof.TwoFactorEnabled = false
	if _, err = svc.repo.UpdateProfile(prof); err != nil {
		return TwoFactorSetup{}, err
	}
	return TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: svc.tfaSvc.ProvisioningURI(secret, label),
	}, nil
}

func (svc *service) ConfirmTwoFactor(usr User, code string) error {
	prof, err := svc.GetProfile(usr)
	if err != nil {
		return err
	}
	if !prof.TwoFactorSecret.Valid {
		return core.NewValidationError(ErrTwoFactorPending)
	}
	if !svc.tfaSvc.Verify(prof.TwoFactorSecret.String, code) {
		return core.NewValidationError(ErrInvalidTOTPCode)
	}
	prof.TwoFactorEnabled = true
	_, err = svc.repo.UpdateProfile(prof)
	return err
}

func (svc *service) DisableTwoFactor(usr User, code string) error {
	prof, err := svc.GetProfile(usr)
	if err != nil {
		return err
	}
	if prof.TwoFactorEnabled {
		if !svc.tfaSvc.Verify(prof.TwoFactorSecret.String, code) {
			return core.NewValidationError(ErrInvalidTOTPCode)
		}
	}
	prof.TwoFactorEnabled = false
	prof.TwoFactorSecret.Valid = false
	prof.TwoFactorSecret.String = ""
	_, err = svc.repo.UpdateProfile(prof)
	return err
}

func (svc *service) VerifyTwoFactor(usr User, code string) error {
	prof, err := svc.GetProfile(usr)
	if err != nil {
		return err
	}
	if !prof.TwoFactorEnabled {
		return nil
	}
	if !svc.tfaSvc.Verify(prof.TwoFactorSecret.String, code) {
		return core.NewValidationError(ErrInvalidTOTPCode)
	}
	return nil
}
