// Package reporting builds the bulk report exports of a clinic: its
// prescriptions, its patients and summary statistics, as CSV or JSON.
package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Report names a bulk export.
type Report string

const (
	ReportPrescriptions Report = "prescriptions"
	ReportPatients      Report = "patients"
	ReportStatistics    Report = "statistics"
)

// Definition describes an available export.
type Definition struct {
	ID          Report   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
	// EntityType is the audit entity recorded when the report is exported.
	EntityType string `json:"-"`
}

// Definitions lists the exports in display order.
var Definitions = []Definition{
	{
		ID:          ReportPrescriptions,
		Name:        "Prescriptions",
		Description: "Prescriptions with patient name and medication names",
		Columns:     []string{"id", "patient_name", "notes", "medications_count", "medications", "created_at"},
		EntityType:  "prescription",
	},
	{
		ID:          ReportPatients,
		Name:        "Patients",
		Description: "Active patients with their medical details",
		Columns:     []string{"id", "full_name", "date_of_birth", "gender", "phone", "allergies", "chronic_diseases", "notes", "created_at"},
		EntityType:  "patient",
	},
	{
		ID:          ReportStatistics,
		Name:        "Statistics",
		Description: "Totals, gender split, average medications and most prescribed medications",
		Columns:     []string{"metric", "value"},
		EntityType:  "prescription",
	},
}

// FindDefinition looks up a report by id.
func FindDefinition(id Report) *Definition {
	for i := range Definitions {
		if Definitions[i].ID == id {
			return &Definitions[i]
		}
	}
	return nil
}

// PrescriptionRecord is one exported prescription. Medications are names in
// line item order.
type PrescriptionRecord struct {
	ID          uuid.UUID
	PatientName string
	Notes       string
	Medications []string
	CreatedAt   time.Time
}

// PatientRecord is one exported, non-archived patient.
type PatientRecord struct {
	ID              uuid.UUID
	FullName        string
	DateOfBirth     *time.Time
	Gender          string
	Phone           string
	Allergies       string
	ChronicDiseases string
	Notes           string
	CreatedAt       time.Time
}

// Source loads the records of one tenant created at or after since. A nil
// since means all records.
type Source interface {
	Prescriptions(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]PrescriptionRecord, error)
	Patients(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]PatientRecord, error)
}

// maxStatisticsMedications caps the per-medication rows of the statistics
// report.
const maxStatisticsMedications = 10

// Build loads and shapes report for tenantID. Timestamps are rendered in loc.
func Build(ctx context.Context, src Source, report Report, tenantID uuid.UUID, since *time.Time, loc *time.Location) (*Dataset, error) {
	def := FindDefinition(report)
	if def == nil {
		return nil, fmt.Errorf("unknown report %q", report)
	}

	var (
		prescriptions []PrescriptionRecord
		patients      []PatientRecord
		err           error
	)
	if report != ReportPatients {
		if prescriptions, err = src.Prescriptions(ctx, tenantID, since); err != nil {
			return nil, fmt.Errorf("load prescriptions: %w", err)
		}
	}
	if report != ReportPrescriptions {
		if patients, err = src.Patients(ctx, tenantID, since); err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
	}

	ds := &Dataset{Name: string(report), Columns: def.Columns}
	switch report {
	case ReportPrescriptions:
		ds.Rows = prescriptionRows(prescriptions, loc)
	case ReportPatients:
		ds.Rows = patientRows(patients, loc)
	case ReportStatistics:
		ds.Rows = statisticsRows(prescriptions, patients)
	}
	return ds, nil
}

func prescriptionRows(records []PrescriptionRecord, loc *time.Location) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, p := range records {
		rows = append(rows, []interface{}{
			p.ID.String(),
			p.PatientName,
			p.Notes,
			len(p.Medications),
			strings.Join(p.Medications, "; "),
			p.CreatedAt.In(loc),
		})
	}
	return rows
}

func patientRows(records []PatientRecord, loc *time.Location) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, p := range records {
		dob := ""
		if p.DateOfBirth != nil {
			dob = p.DateOfBirth.Format("2006-01-02")
		}
		rows = append(rows, []interface{}{
			p.ID.String(),
			p.FullName,
			dob,
			p.Gender,
			p.Phone,
			p.Allergies,
			p.ChronicDiseases,
			p.Notes,
			p.CreatedAt.In(loc),
		})
	}
	return rows
}

func statisticsRows(prescriptions []PrescriptionRecord, patients []PatientRecord) [][]interface{} {
	var male, female, meds int
	for _, p := range patients {
		switch p.Gender {
		case "male":
			male++
		case "female":
			female++
		}
	}

	counts := map[string]int{}
	var order []string
	for _, p := range prescriptions {
		meds += len(p.Medications)
		for _, name := range p.Medications {
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	avg := 0.0
	if len(prescriptions) > 0 {
		avg = float64(meds) / float64(len(prescriptions))
	}

	rows := [][]interface{}{
		{"Total Prescriptions", len(prescriptions)},
		{"Total Patients", len(patients)},
		{"Male Patients", male},
		{"Female Patients", female},
		{"Average Medications per Prescription", fmt.Sprintf("%.2f", avg)},
	}
	if len(order) > maxStatisticsMedications {
		order = order[:maxStatisticsMedications]
	}
	for _, name := range order {
		rows = append(rows, []interface{}{"Medication: " + name, counts[name]})
	}
	return rows
}

// FileName returns the download name, e.g. "patients_2026-10-17_09-30.csv".
func FileName(report Report, format Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", report, at.Format("2006-01-02_15-04"), format)
}
