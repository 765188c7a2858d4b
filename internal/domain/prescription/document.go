package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/notification"
	"github.com/clinicrx/clinic/internal/platform/render"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Document assembles the rendered form of a prescription: the prescription
// itself, the doctor who issued it and the caller's clinic. A doctor who
// has since left the clinic is printed without a profile.
func (s *Service) Document(ctx context.Context, id uuid.UUID) (*Prescription, render.Document, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, render.Document{}, err
	}
	clinic, err := s.directory.Clinic(ctx)
	if err != nil {
		return nil, render.Document{}, err
	}
	doctor, err := s.directory.Profile(ctx, p.DoctorID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, render.Document{}, err
	}

	doc := render.Document{
		PrescriptionID: p.ID.String(),
		IssuedAt:       p.CreatedAt,
		Notes:          deref(p.Notes),
		Clinic: render.Clinic{
			Name:       clinic.Name,
			Address:    deref(clinic.Address),
			Phone:      deref(clinic.Phone),
			LogoURL:    clinic.LogoURL,
			FooterNote: deref(clinic.FooterNote),
		},
	}
	if p.Patient != nil {
		doc.Patient.FullName = p.Patient.FullName
		if p.Patient.DateOfBirth != nil {
			dob := p.Patient.DateOfBirth.Time
			doc.Patient.DateOfBirth = &dob
		}
	}
	if doctor != nil {
		doc.Doctor = render.Doctor{
			FullName:      doctor.FullName,
			Specialty:     deref(doctor.Specialty),
			LicenseNumber: deref(doctor.LicenseNumber),
			SignatureURL:  doctor.SignatureURL,
		}
	}
	for _, m := range p.Medications {
		doc.Medications = append(doc.Medications, render.Medication{
			Name:      m.MedicationName,
			Dosage:    deref(m.Dosage),
			Form:      deref(m.Form),
			Frequency: deref(m.Frequency),
			Duration:  deref(m.Duration),
		})
	}
	return p, doc, nil
}

// Print renders the printable HTML document in lang.
func (s *Service) Print(ctx context.Context, id uuid.UUID, lang string) (string, error) {
	p, doc, err := s.Document(ctx, id)
	if err != nil {
		return "", err
	}
	html, err := s.renderer.HTML(ctx, doc, lang)
	if err != nil {
		return "", err
	}
	s.record(ctx, "print", p, nil, map[string]string{"format": "html", "language": lang})
	return html, nil
}

// PDF renders the prescription as a single-page PDF.
func (s *Service) PDF(ctx context.Context, id uuid.UUID, lang string) ([]byte, *Prescription, error) {
	p, doc, err := s.Document(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.renderer.PDF(ctx, doc, lang)
	if err != nil {
		return nil, nil, err
	}
	s.record(ctx, "export", p, nil, map[string]string{"format": "pdf", "language": lang})
	return out, p, nil
}

// Email sends the prescription to req.RecipientEmail through the mail
// function.
func (s *Service) Email(ctx context.Context, id uuid.UUID, req EmailRequest) (*notification.SendResult, error) {
	if !notification.ValidEmail(req.RecipientEmail) {
		return nil, apperr.Validation("recipient_email is not a valid email address")
	}
	p, doc, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.mail.SendPrescriptionEmail(ctx, s.renderer.EmailRequest(doc, req.Language, req.RecipientEmail))
	if err != nil {
		return nil, err
	}
	s.record(ctx, "export", p, nil, map[string]string{
		"format":    "email",
		"recipient": req.RecipientEmail,
	})
	return res, nil
}

// PDFFileName is the download name of a prescription PDF.
func PDFFileName(p *Prescription) string {
	return "prescription-" + p.CreatedAt.Format("2006-01-02") + "-" + p.ID.String()[:8] + ".pdf"
}
