package user

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUserExists     = errors.New("user already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		SetLastLogin(ctx context.Context, id string, t time.Time) error
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...)
	if err != nil {
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

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(usr.Roles) == 0 {
		usr.Roles = []string{RoleAmbassador}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// UpdateOrCreate saves usr as-is, creating it if it has no ID yet.
// Used by admin tooling; API callers go through Create/Update.
func (svc *Service) UpdateOrCreate(ctx context.Context, usr User) error {
	_, err := svc.repo.UpdateOrCreateUser(ctx, usr)
	return err
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByPhone(ctx context.Context, phone string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Phone: phone})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Phone:     uu.Phone,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// RecordLogin stamps the user's last login time.
func (svc *Service) RecordLogin(ctx context.Context, usr User) error {
	return svc.repo.SetLastLogin(ctx, usr.ID, time.Now().UTC())
}

// RequestPasswordReset emails the user a signed reset link.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if err == ErrNotFound {
			return nil // do not leak account existence
		}
		return err
	}

	token, err := MakeToken(svc.conf, usr)
	if err != nil {
		return pkgerrors.Wrap(err, "making reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			User  User
			UID   string
			Token string
		}{usr, EncodeUID(usr), token},
	})
	return nil
}

// ConfirmPasswordReset validates the uid/token pair and sets the new password.
func (svc *Service) ConfirmPasswordReset(ctx context.Context, uid, token, password string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, errInvalidToken
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if err == ErrNotFound {
			return User{}, errInvalidToken
		}
		return User{}, err
	}
	if err := verifyToken(svc.conf, usr, token); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(password); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// csv column layout for bulk user import
var csvHeader = []string{"name", "email", "phone", "username", "roles"}

// ImportCSV bulk-creates users from a CSV stream.
// Expected columns: name,email,phone,username,roles (roles semicolon-separated;
// defaults to ambassador). Existing users (matched on email) are updated.
// Imported users get a random password and must go through the reset flow.
func (svc *Service) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	var count int
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, pkgerrors.Wrapf(err, "reading csv line %d", line)
		}
		if line == 1 && strings.EqualFold(record[0], csvHeader[0]) {
			continue // header row
		}

		name := core.CleanString(record[0])
		email := core.CleanString(record[1], true /* lower */)
		if name == "" || email == "" {
			return count, pkgerrors.Errorf("csv line %d: name and email are required", line)
		}
		phone, _ := normalizeDigits(record[2])
		roles := parseRoles(record[4])

		usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
		if err != nil {
			if err != ErrNotFound {
				return count, pkgerrors.Wrapf(err, "csv line %d", line)
			}
			now := time.Now().UTC()
			usr = User{
				Email:     email,
				IsActive:  true,
				CreatedAt: now,
			}
			// random password; account activation goes through password reset
			if err := usr.SetPassword(uuid.New().String()); err != nil {
				return count, pkgerrors.Wrapf(err, "csv line %d", line)
			}
		}
		usr.Name = name
		usr.Username = core.CleanString(record[3], true /* lower */)
		usr.Phone = phone
		usr.Roles = roles
		usr.UpdatedAt = time.Now().UTC()

		if _, err := svc.repo.UpdateOrCreateUser(ctx, usr); err != nil {
			return count, pkgerrors.Wrapf(err, "csv line %d", line)
		}
		count++
	}
	return count, nil
}

func parseRoles(raw string) []string {
	var roles []string
	for _, role := range strings.Split(raw, ";") {
		role = core.CleanString(role, true /* lower */)
		if role == "" {
			continue
		}
		for _, known := range AllRoles {
			if role == known {
				roles = append(roles, role)
				break
			}
		}
	}
	if len(roles) == 0 {
		roles = []string{RoleAmbassador}
	}
	return roles
}

// String implements fmt.Stringer for log output.
func (u User) String() string {
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}
