package identity

import (
	"time"

	"github.com/google/uuid"
)

// Patient genders.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

type Patient struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Gender        string     `json:"gender"`
	DateOfBirth   *time.Time `json:"dateOfBirth,omitempty"`
	ContactNumber *string    `json:"contactNumber,omitempty"`
	Email         string     `json:"email"`
	PasswordHash  *string    `json:"-"`
	Address       *string    `json:"address,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// AgeAt returns the patient's age in whole years at t, or nil when the date
// of birth is unknown.
func (p *Patient) AgeAt(t time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	age := t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return &age
}

// PatientSummary is a patient row with booking statistics.
type PatientSummary struct {
	*Patient
	TotalBookings int        `json:"totalBookings"`
	LastVisit     *time.Time `json:"lastVisit"`
}

type PatientOverview struct {
	PatientID     uuid.UUID `json:"patientId"`
	TotalBookings int       `json:"totalBookings"`
	Completed     int       `json:"completed"`
	Pending       int       `json:"pending"`
}

type CreatePatientRequest struct {
	Name          string     `json:"name"`
	Gender        string     `json:"gender"`
	DateOfBirth   *time.Time `json:"dateOfBirth"`
	ContactNumber *string    `json:"contactNumber"`
	Email         string     `json:"email"`
	Password      string     `json:"password"`
	Address       *string    `json:"address"`
}

type UpdatePatientRequest struct {
	Name          string     `json:"name"`
	Gender        string     `json:"gender"`
	DateOfBirth   *time.Time `json:"dateOfBirth"`
	ContactNumber *string    `json:"contactNumber"`
	Email         string     `json:"email"`
	Address       *string    `json:"address"`
}

// User is a staff member who books orders, collects samples or enters
// results.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
