// Package model holds the explicit record types that flow through the
// pipelines: the three operational entities read from the OLTP store, the
// star-schema rows derived from them, and the nested patient document.
//
// Column names are the operational schema's own (misspellings included);
// they are the contract with the source database and with the analytical
// tables written downstream.
package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Operational and analytical column names.
const (
	ColPatientID       = "Patient_ID"
	ColPracticeKey     = "Registered_GP_Practice_key"
	ColTECKey          = "TEC_or_No_Key"
	ColPracticeName    = "Registered_GP_Practice"
	ColLatitude        = "GPS_Coordinates_lat"
	ColLongitude       = "GPS_Coordinates_long"
	ColPopulation      = "GP_Population_2024"
	ColScoreOverall    = "GP_area_deprevity_score_overall"
	ColCategoryOverall = "Deprevity_catagory_overall"
	ColRankHealth      = "GP_area_deprivity_rank_health"
	ColCategoryHealth  = "Deprevity_catagory_health"
	ColRankAccess      = "GP_area_deprivity_rank_access_to_services"
	ColCategoryAccess  = "Deprevity_catagory_access"
	ColTecOrNo         = "Tec_or_No"
)

// SubscriberValue is the folded TEC status that marks a subscriber.
const SubscriberValue = "tec"

// Key is the canonical text form of an identity or foreign key. The empty
// Key stands for SQL NULL and never matches in a join.
type Key string

// Valid reports whether k can participate in a join.
func (k Key) Valid() bool { return k != "" }

// Patient is one row of pat_info.
type Patient struct {
	ID          Key
	PracticeKey Key
	TECKey      Key
}

// Deprivation is an area-level (score-or-rank, category) pair.
type Deprivation struct {
	Score    float64 `bson:"score" json:"score"`
	Category int64   `bson:"category" json:"category"`
}

// Practice is one row of gp_prac.
type Practice struct {
	Key        Key
	Name       string
	Latitude   float64
	Longitude  float64
	Population int64
	Overall    Deprivation
	Health     Deprivation
	Access     Deprivation
}

// TECStatus is one row of the tec_no_key lookup.
type TECStatus struct {
	Key   Key
	Value string
}

// Subscriber reports whether the status denotes a TEC subscriber.
func (t TECStatus) Subscriber() bool { return IsSubscriber(t.Value) }

// IsSubscriber compares a raw TEC status against "tec" after trimming and
// Unicode case folding.
func IsSubscriber(v string) bool {
	return cases.Fold().String(strings.TrimSpace(v)) == SubscriberValue
}

// FactRow links a patient to exactly one practice.
type FactRow struct {
	PatientID   Key
	PracticeKey Key
}

// PatientDim is the patient dimension row.
type PatientDim struct {
	PatientID Key
	TecOrNo   string
}

// JoinedRow is one row of the pre-joined patient/practice/TEC query used by
// the document pipeline.
type JoinedRow struct {
	Patient  Patient
	Practice Practice
	TEC      TECStatus
}

// PatientDocument is the denormalized, nested document written to the
// document store: one per patient.
type PatientDocument struct {
	PatientID string           `bson:"patient_id" json:"patient_id"`
	Practice  PracticeDocument `bson:"gp_practice" json:"gp_practice"`
	TECStatus string           `bson:"tec_status" json:"tec_status"`
}

// PracticeDocument is the practice sub-document embedded in PatientDocument.
type PracticeDocument struct {
	Key         string              `bson:"practice_key" json:"practice_key"`
	Name        string              `bson:"practice_name" json:"practice_name"`
	Location    Location            `bson:"location" json:"location"`
	Population  int64               `bson:"population" json:"population"`
	Deprivation DeprivationDocument `bson:"deprivation" json:"deprivation"`
}

// Location holds GPS coordinates.
type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// DeprivationDocument groups the three deprivation axes.
type DeprivationDocument struct {
	Overall Deprivation `bson:"overall" json:"overall"`
	Health  Deprivation `bson:"health" json:"health"`
	Access  Deprivation `bson:"access_to_services" json:"access_to_services"`
}

// NewPatientDocument nests a joined row into its document shape.
func NewPatientDocument(row JoinedRow) PatientDocument {
	p := row.Practice
	return PatientDocument{
		PatientID: string(row.Patient.ID),
		Practice: PracticeDocument{
			Key:        string(p.Key),
			Name:       p.Name,
			Location:   Location{Latitude: p.Latitude, Longitude: p.Longitude},
			Population: p.Population,
			Deprivation: DeprivationDocument{
				Overall: p.Overall,
				Health:  p.Health,
				Access:  p.Access,
			},
		},
		TECStatus: row.TEC.Value,
	}
}
