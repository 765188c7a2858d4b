package render

import (
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/notification"
)

// EmailRequest builds the mail function payload for doc. Frequencies are
// sent as labels in lang and the date is localized.
func (r *Renderer) EmailRequest(doc Document, lang, recipient string) notification.PrescriptionEmailRequest {
	lang = r.catalog.Normalize(lang)

	meds := make([]notification.EmailMedication, 0, len(doc.Medications))
	for _, m := range doc.Medications {
		meds = append(meds, notification.EmailMedication{
			MedicationName: m.Name,
			Dosage:         m.Dosage,
			Frequency:      r.catalog.Label(i18n.CategoryFrequency, m.Frequency, lang),
			Duration:       m.Duration,
		})
	}

	return notification.PrescriptionEmailRequest{
		RecipientEmail:   recipient,
		PatientName:      doc.Patient.FullName,
		DoctorName:       r.catalog.Text("doc.doctor_prefix", lang) + " " + doc.Doctor.FullName,
		ClinicName:       doc.Clinic.Name,
		PrescriptionDate: r.catalog.FormatDate(doc.IssuedAt, lang),
		Medications:      meds,
		Language:         lang,
	}
}
