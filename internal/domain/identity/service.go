package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/auth"
	"github.com/pathlab/pathlab/internal/platform/db"
	"github.com/pathlab/pathlab/internal/platform/notification"
)

const (
	maxNameLen     = 100
	maxEmailLen    = 255
	maxContactLen  = 20
	minPasswordLen = 8
)

// Notifier queues a templated message. Delivery failures never reach the
// caller.
type Notifier interface {
	Notify(ctx context.Context, to, templateID string, data map[string]string)
}

type Service struct {
	patients  PatientRepository
	users     UserRepository
	tx        db.Transactor
	notifier  Notifier
	portalURL string
	now       func() time.Time
}

func NewService(patients PatientRepository, users UserRepository, tx db.Transactor) *Service {
	return &Service{patients: patients, users: users, tx: tx, now: time.Now}
}

// SetNotifier enables the welcome message sent after registration. portalURL
// is the link included in it.
func (s *Service) SetNotifier(n Notifier, portalURL string) {
	s.notifier = n
	s.portalURL = portalURL
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := s.validatePatient(req.Name, req.Gender, req.Email, req.ContactNumber, req.DateOfBirth); err != nil {
		return nil, err
	}
	p := &Patient{
		Name:          req.Name,
		Gender:        req.Gender,
		DateOfBirth:   req.DateOfBirth,
		ContactNumber: req.ContactNumber,
		Email:         strings.ToLower(req.Email),
		Address:       req.Address,
		Active:        true,
	}
	if req.Password != "" {
		if len(req.Password) < minPasswordLen {
			return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "password cannot be hashed")
		}
		h := string(hash)
		p.PasswordHash = &h
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.patients.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, p.Email, notification.TemplatePatientWelcome, map[string]string{
			"patient_name": p.Name,
			"link":         s.portalURL,
		})
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *UpdatePatientRequest) (*Patient, error) {
	if err := s.validatePatient(req.Name, req.Gender, req.Email, req.ContactNumber, req.DateOfBirth); err != nil {
		return nil, err
	}
	var out *Patient
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p.Name = req.Name
		p.Gender = req.Gender
		p.DateOfBirth = req.DateOfBirth
		p.ContactNumber = req.ContactNumber
		p.Email = strings.ToLower(req.Email)
		p.Address = req.Address
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, id); err != nil {
			return err
		}
		has, err := s.patients.HasOrders(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Conflict("patient %s has orders and cannot be deleted", id)
		}
		return s.patients.Delete(ctx, id)
	})
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*PatientSummary, int, error) {
	return s.patients.ListWithSummary(ctx, limit, offset)
}

func (s *Service) PatientOverview(ctx context.Context, id uuid.UUID) (*PatientOverview, error) {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.patients.Overview(ctx, id)
}

func (s *Service) validatePatient(name, gender, email string, contact *string, dob *time.Time) error {
	if name == "" {
		return apperr.Validation("name is required")
	}
	if len(name) > maxNameLen {
		return apperr.Validation("name must be at most %d characters", maxNameLen)
	}
	if !ValidGender(gender) {
		return apperr.Validation("gender must be one of M, F, O")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if contact != nil && len(*contact) > maxContactLen {
		return apperr.Validation("contactNumber must be at most %d characters", maxContactLen)
	}
	if dob != nil && dob.After(s.now()) {
		return apperr.Validation("dateOfBirth must not be in the future")
	}
	return nil
}

// -- User --

func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(req.Name) > maxNameLen {
		return nil, apperr.Validation("name must be at most %d characters", maxNameLen)
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if !auth.ValidRole(req.Role) {
		return nil, apperr.Validation("invalid role: %q", req.Role)
	}
	u := &User{
		Name:   req.Name,
		Email:  strings.ToLower(req.Email),
		Role:   req.Role,
		Active: true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	if len(email) > maxEmailLen {
		return apperr.Validation("email must be at most %d characters", maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("invalid email: %q", email)
	}
	return nil
}
