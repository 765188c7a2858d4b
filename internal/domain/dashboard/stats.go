// Package dashboard computes a clinic's statistics and the notifications
// shown on its dashboard.
package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/clinicrx/clinic/internal/platform/reporting"
)

// TopMedicationsLimit caps the most prescribed medications list.
const TopMedicationsLimit = 5

type DayCount struct {
	Date          string `json:"date"`
	Prescriptions int    `json:"prescriptions"`
}

type MonthCount struct {
	Month         string `json:"month"`
	Label         string `json:"label"`
	Prescriptions int    `json:"prescriptions"`
	Patients      int    `json:"patients"`
}

type GenderSplit struct {
	Male    int `json:"male"`
	Female  int `json:"female"`
	Unknown int `json:"unknown"`
}

type MedicationCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics summarizes a clinic's activity at GeneratedAt.
type Statistics struct {
	TotalPatients          int               `json:"total_patients"`
	TotalPrescriptions     int               `json:"total_prescriptions"`
	PatientsToday          int               `json:"patients_today"`
	PrescriptionsToday     int               `json:"prescriptions_today"`
	PrescriptionsWeek      int               `json:"prescriptions_week"`
	PrescriptionsMonth     int               `json:"prescriptions_month"`
	PrescriptionsLastMonth int               `json:"prescriptions_last_month"`
	Growth                 int               `json:"growth"`
	Last7Days              []DayCount        `json:"last_7_days"`
	Last6Months            []MonthCount      `json:"last_6_months"`
	Gender                 GenderSplit       `json:"gender"`
	TopMedications         []MedicationCount `json:"top_medications"`
	GeneratedAt            time.Time         `json:"generated_at"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time, offset int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(offset), 1, 0, 0, 0, 0, t.Location())
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// Growth is the month over month change in percent, rounded. It is 100 when
// the previous month had nothing to compare with.
func Growth(thisMonth, lastMonth int) int {
	if lastMonth == 0 {
		return 100
	}
	return int(math.Round(float64(thisMonth-lastMonth) / float64(lastMonth) * 100))
}

// Compute derives the statistics from every prescription and active patient
// of a clinic. Calendar boundaries are taken in now's location and weeks
// start on Sunday. monthLabel names a month for display.
func Compute(prescriptions []reporting.PrescriptionRecord, patients []reporting.PatientRecord, now time.Time, monthLabel func(time.Month) string) *Statistics {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	week := today.AddDate(0, 0, -int(today.Weekday()))
	month := startOfMonth(now, 0)
	lastMonth := startOfMonth(now, -1)

	s := &Statistics{
		TotalPatients:      len(patients),
		TotalPrescriptions: len(prescriptions),
		GeneratedAt:        now,
	}

	days := make([]DayCount, 7)
	dayIndex := make(map[string]int, len(days))
	for i := range days {
		days[i].Date = today.AddDate(0, 0, i-6).Format("2006-01-02")
		dayIndex[days[i].Date] = i
	}
	months := make([]MonthCount, 6)
	for i := range months {
		start := startOfMonth(now, i-5)
		months[i].Month = start.Format("2006-01")
		if monthLabel != nil {
			months[i].Label = monthLabel(start.Month())
		}
	}
	monthIndex := func(t time.Time) int {
		for i := range months {
			start := startOfMonth(now, i-5)
			if within(t, start, start.AddDate(0, 1, 0)) {
				return i
			}
		}
		return -1
	}

	counts := map[string]int{}
	var order []string
	for _, p := range prescriptions {
		at := p.CreatedAt.In(now.Location())
		if within(at, today, tomorrow) {
			s.PrescriptionsToday++
		}
		if !at.Before(week) {
			s.PrescriptionsWeek++
		}
		if !at.Before(month) {
			s.PrescriptionsMonth++
		}
		if within(at, lastMonth, month) {
			s.PrescriptionsLastMonth++
		}
		// Calendar dates, not elapsed hours: DST days are 23h or 25h long.
		if d, ok := dayIndex[at.Format("2006-01-02")]; ok {
			days[d].Prescriptions++
		}
		if i := monthIndex(at); i >= 0 {
			months[i].Prescriptions++
		}
		for _, name := range p.Medications {
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	for _, p := range patients {
		at := p.CreatedAt.In(now.Location())
		if within(at, today, tomorrow) {
			s.PatientsToday++
		}
		if i := monthIndex(at); i >= 0 {
			months[i].Patients++
		}
		switch p.Gender {
		case "male":
			s.Gender.Male++
		case "female":
			s.Gender.Female++
		default:
			s.Gender.Unknown++
		}
	}

	s.Growth = Growth(s.PrescriptionsMonth, s.PrescriptionsLastMonth)
	s.Last7Days = days
	s.Last6Months = months

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > TopMedicationsLimit {
		order = order[:TopMedicationsLimit]
	}
	s.TopMedications = make([]MedicationCount, 0, len(order))
	for _, name := range order {
		s.TopMedications = append(s.TopMedications, MedicationCount{Name: name, Count: counts[name]})
	}
	return s
}
