package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/db"
	"github.com/pathlab/pathlab/internal/platform/notification"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
	orders   map[uuid.UUID]int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients: make(map[uuid.UUID]*Patient),
		orders:   make(map[uuid.UUID]int),
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.Email == p.Email {
			return apperr.Conflict("email already registered")
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return apperr.NotFound("patient", id)
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) ListWithSummary(_ context.Context, limit, offset int) ([]*PatientSummary, int, error) {
	var result []*PatientSummary
	for _, p := range m.patients {
		result = append(result, &PatientSummary{Patient: p, TotalBookings: m.orders[p.ID]})
	}
	return result, len(result), nil
}

func (m *mockPatientRepo) Overview(_ context.Context, id uuid.UUID) (*PatientOverview, error) {
	return &PatientOverview{PatientID: id, TotalBookings: m.orders[id], Pending: m.orders[id]}, nil
}

func (m *mockPatientRepo) HasOrders(_ context.Context, id uuid.UUID) (bool, error) {
	return m.orders[id] > 0, nil
}

// -- Mock User Repository --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return u, nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.users {
		result = append(result, u)
	}
	return result, len(result), nil
}

// -- Recording notifier --

type sentNotice struct {
	to, templateID string
	data           map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (r *recordingNotifier) Notify(_ context.Context, to, templateID string, data map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotice{to: to, templateID: templateID, data: data})
}

func newTestService() *Service {
	return NewService(newMockPatientRepo(), newMockUserRepo(), db.Passthrough{})
}

func patientRequest() *CreatePatientRequest {
	dob := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
	return &CreatePatientRequest{
		Name:        "Asha Verma",
		Gender:      GenderFemale,
		DateOfBirth: &dob,
		Email:       "asha@example.com",
		Password:    "s3cret-pass",
	}
}

func TestService_CreatePatient(t *testing.T) {
	svc := newTestService()
	n := &recordingNotifier{}
	svc.SetNotifier(n, "https://portal.example.com")

	p, err := svc.CreatePatient(context.Background(), patientRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil || !p.Active {
		t.Error("expected an active patient with an id")
	}
	if p.PasswordHash == nil {
		t.Fatal("expected password hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*p.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}

	if len(n.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.sent))
	}
	if n.sent[0].templateID != notification.TemplatePatientWelcome || n.sent[0].to != "asha@example.com" {
		t.Errorf("unexpected notification: %+v", n.sent[0])
	}
	if n.sent[0].data["link"] != "https://portal.example.com" {
		t.Errorf("expected portal link, got %q", n.sent[0].data["link"])
	}
}

func TestService_CreatePatient_WithoutPassword(t *testing.T) {
	svc := newTestService()
	req := patientRequest()
	req.Password = ""
	p, err := svc.CreatePatient(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PasswordHash != nil {
		t.Error("expected no password hash")
	}
}

func TestService_CreatePatient_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := map[string]func(r *CreatePatientRequest){
		"missing name":   func(r *CreatePatientRequest) { r.Name = "" },
		"long name":      func(r *CreatePatientRequest) { r.Name = strings.Repeat("a", 101) },
		"bad gender":     func(r *CreatePatientRequest) { r.Gender = "X" },
		"bad email":      func(r *CreatePatientRequest) { r.Email = "not-an-email" },
		"short password": func(r *CreatePatientRequest) { r.Password = "short" },
		"future dob": func(r *CreatePatientRequest) {
			d := time.Now().AddDate(1, 0, 0)
			r.DateOfBirth = &d
		},
	}
	for name, mutate := range cases {
		req := patientRequest()
		mutate(req)
		if _, err := svc.CreatePatient(ctx, req); !apperr.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestService_CreatePatient_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.CreatePatient(ctx, patientRequest())
	if _, err := svc.CreatePatient(ctx, patientRequest()); !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestService_UpdatePatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p, _ := svc.CreatePatient(ctx, patientRequest())

	addr := "12 Park Street"
	updated, err := svc.UpdatePatient(ctx, p.ID, &UpdatePatientRequest{
		Name:    "Asha V.",
		Gender:  GenderFemale,
		Email:   "asha.v@example.com",
		Address: &addr,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Asha V." || *updated.Address != addr {
		t.Errorf("unexpected patient: %+v", updated)
	}
	if _, err := svc.UpdatePatient(ctx, uuid.New(), &UpdatePatientRequest{Name: "x", Gender: "M", Email: "x@example.com"}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_DeletePatient_WithOrders(t *testing.T) {
	patients := newMockPatientRepo()
	svc := NewService(patients, newMockUserRepo(), db.Passthrough{})
	ctx := context.Background()
	p, _ := svc.CreatePatient(ctx, patientRequest())

	patients.orders[p.ID] = 2
	if err := svc.DeletePatient(ctx, p.ID); !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
	patients.orders[p.ID] = 0
	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetPatient(ctx, p.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_PatientOverview_NotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.PatientOverview(context.Background(), uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_CreateUser(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, &CreateUserRequest{Name: "Ravi", Email: "Ravi@Lab.example", Role: "lab_tech"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "ravi@lab.example" {
		t.Errorf("expected lower-cased email, got %s", u.Email)
	}
	if _, err := svc.GetUser(ctx, u.ID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := svc.CreateUser(ctx, &CreateUserRequest{Name: "X", Email: "x@lab.example", Role: "nurse"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for role, got %v", err)
	}
}

func TestPatient_AgeAt(t *testing.T) {
	dob := time.Date(2000, time.March, 10, 0, 0, 0, 0, time.UTC)
	p := &Patient{DateOfBirth: &dob}

	if got := *p.AgeAt(time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)); got != 23 {
		t.Errorf("day before birthday: expected 23, got %d", got)
	}
	if got := *p.AgeAt(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)); got != 24 {
		t.Errorf("on birthday: expected 24, got %d", got)
	}
	if (&Patient{}).AgeAt(time.Now()) != nil {
		t.Error("expected nil age without date of birth")
	}
}
