package models

import "time"

// Gender values carried on student records.
type Gender string

const (
	GenderMale   Gender = "MASCULIN"
	GenderFemale Gender = "FEMININ"
)

// AcademicCycle identifies the study cycle a student is enrolled in.
type AcademicCycle string

const (
	CycleLicence  AcademicCycle = "LICENCE"
	CycleMaster   AcademicCycle = "MASTER"
	CycleMedecine AcademicCycle = "MEDECINE"
	CycleDoctorat AcademicCycle = "DOCTORAT"
)

// MaxHousingYears returns the maximum number of housing years allowed for a
// cycle. Unknown cycles fall back to the most restrictive limit.
func (c AcademicCycle) MaxHousingYears() int {
	switch c {
	case CycleLicence:
		return 3
	case CycleMaster:
		return 2
	case CycleMedecine:
		return 8
	case CycleDoctorat:
		return 3
	default:
		return 2
	}
}

// Student represents a student known to a CROU tenant. It is a read-only
// input to eligibility scoring and room assignment.
type Student struct {
	ID           string        `db:"id" json:"id"`
	TenantID     string        `db:"tenant_id" json:"tenant_id"`
	INE          string        `db:"ine" json:"ine"`
	FullName     string        `db:"full_name" json:"full_name"`
	Gender       Gender        `db:"gender" json:"gender"`
	Cycle        AcademicCycle `db:"cycle" json:"cycle"`
	LevelOfStudy int           `db:"level_of_study" json:"level_of_study"`
	Boursier     bool          `db:"boursier" json:"boursier"`
	BacSeries    string        `db:"bac_series" json:"bac_series"`
	Resident     bool          `db:"resident" json:"resident"`
	Handicape    bool          `db:"handicape" json:"handicape"`
	Active       bool          `db:"active" json:"active"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// HasScientificBac reports whether the baccalaureat series is one of the
// scientific tracks (C, D, E).
func (s *Student) HasScientificBac() bool {
	switch s.BacSeries {
	case "C", "D", "E":
		return true
	}
	return false
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Cycle     AcademicCycle
	Boursier  *bool
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
