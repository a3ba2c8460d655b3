package models

import (
	"time"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

const SubmittedNote = "Application submitted"

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// SelectedPet is the pet the applicant picked, if any.
type SelectedPet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Breed string `json:"breed"`
	Type  string `json:"type"`
}

// Applicant holds the answers from the adoption form.
type Applicant struct {
	FirstName       string `json:"firstName" binding:"required"`
	LastName        string `json:"lastName" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"required"`
	Address         string `json:"address" binding:"required"`
	HousingType     string `json:"housingType" binding:"required"`
	HasYard         string `json:"hasYard" binding:"required,oneof=yes no"`
	OtherPets       string `json:"otherPets" binding:"required,oneof=yes no"`
	PetExperience   string `json:"petExperience" binding:"required"`
	PreferredPet    string `json:"preferredPet" binding:"required"`
	WorkSchedule    string `json:"workSchedule" binding:"required"`
	FamilyAgreement bool   `json:"familyAgreement"`
	VetCare         bool   `json:"vetCare"`
	AdditionalInfo  string `json:"additionalInfo"`
}

// GetFullName returns the applicant's full name
func (a Applicant) GetFullName() string {
	return a.FirstName + " " + a.LastName
}

// ApplicationInput is what the adoption form submits.
type ApplicationInput struct {
	Applicant
	SelectedPet *SelectedPet `json:"selectedPet,omitempty"`
}

// Application is a persisted adoption application.
type Application struct {
	ID            string            `json:"id"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	StatusHistory StatusHistory     `json:"statusHistory"`
	Applicant
	SelectedPet *SelectedPet `json:"selectedPet,omitempty"`
}

// ApplicationPatch lists the top-level fields an update may overwrite. Nil
// fields are left alone.
type ApplicationPatch struct {
	Status          *ApplicationStatus `json:"status,omitempty"`
	FirstName       *string            `json:"firstName,omitempty"`
	LastName        *string            `json:"lastName,omitempty"`
	Email           *string            `json:"email,omitempty"`
	Phone           *string            `json:"phone,omitempty"`
	Address         *string            `json:"address,omitempty"`
	HousingType     *string            `json:"housingType,omitempty"`
	HasYard         *string            `json:"hasYard,omitempty"`
	OtherPets       *string            `json:"otherPets,omitempty"`
	PetExperience   *string            `json:"petExperience,omitempty"`
	PreferredPet    *string            `json:"preferredPet,omitempty"`
	WorkSchedule    *string            `json:"workSchedule,omitempty"`
	FamilyAgreement *bool              `json:"familyAgreement,omitempty"`
	VetCare         *bool              `json:"vetCare,omitempty"`
	AdditionalInfo  *string            `json:"additionalInfo,omitempty"`
	SelectedPet     *SelectedPet       `json:"selectedPet,omitempty"`
}

// ApplyFields overwrites every non-nil applicant field, status included.
// History bookkeeping is the registry's job.
func (p ApplicationPatch) ApplyFields(a *Application) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	setString(&a.FirstName, p.FirstName)
	setString(&a.LastName, p.LastName)
	setString(&a.Email, p.Email)
	setString(&a.Phone, p.Phone)
	setString(&a.Address, p.Address)
	setString(&a.HousingType, p.HousingType)
	setString(&a.HasYard, p.HasYard)
	setString(&a.OtherPets, p.OtherPets)
	setString(&a.PetExperience, p.PetExperience)
	setString(&a.PreferredPet, p.PreferredPet)
	setString(&a.WorkSchedule, p.WorkSchedule)
	setString(&a.AdditionalInfo, p.AdditionalInfo)
	if p.FamilyAgreement != nil {
		a.FamilyAgreement = *p.FamilyAgreement
	}
	if p.VetCare != nil {
		a.VetCare = *p.VetCare
	}
	if p.SelectedPet != nil {
		pet := *p.SelectedPet
		a.SelectedPet = &pet
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
