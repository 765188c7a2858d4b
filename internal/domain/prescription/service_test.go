package prescription

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/domain/patient"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/middleware"
	"github.com/clinicrx/clinic/internal/platform/notification"
	"github.com/clinicrx/clinic/internal/platform/render"
)

// -- Mock Repository --

type mockRepo struct {
	store      map[uuid.UUID]*Prescription
	clock      time.Time
	failInsert bool
	calls      int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Prescription), clock: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
}

func clone(p *Prescription) *Prescription {
	cp := *p
	cp.Medications = append([]Medication{}, p.Medications...)
	if p.Patient != nil {
		ps := *p.Patient
		cp.Patient = &ps
	}
	return &cp
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	m.calls++
	m.clock = m.clock.Add(time.Minute)
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = m.clock, m.clock
	m.store[p.ID] = clone(p)
	if m.failInsert {
		return errors.New("insert medication: connection reset")
	}
	for i := range p.Medications {
		p.Medications[i].ID = uuid.New()
		p.Medications[i].PrescriptionID = p.ID
	}
	m.store[p.ID] = clone(p)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*Prescription, error) {
	p, ok := m.store[id]
	if !ok || p.TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	return clone(p), nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	existing, ok := m.store[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return apperr.ErrNotFound
	}
	updated := clone(p)
	updated.Medications = existing.Medications
	m.store[p.ID] = updated
	return nil
}

func (m *mockRepo) ReplaceMedications(_ context.Context, id uuid.UUID, meds []Medication) error {
	if m.failInsert {
		return errors.New("insert medication: check constraint")
	}
	for i := range meds {
		meds[i].ID = uuid.New()
		meds[i].PrescriptionID = id
	}
	m.store[id].Medications = append([]Medication{}, meds...)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	p, ok := m.store[id]
	if !ok || p.TenantID != tenantID {
		return apperr.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, tenantID uuid.UUID, f Filter, limit, offset int) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, p := range m.store {
		if p.TenantID != tenantID {
			continue
		}
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		if f.Q != "" && !strings.Contains(strings.ToLower(p.patientName()), strings.ToLower(f.Q)) {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	if end := offset + limit; end < total {
		out = out[:end]
	}
	return out[offset:], total, nil
}

// -- Collaborators --

type mockPatients map[uuid.UUID]*patient.Patient

func (m mockPatients) Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := m[id]
	if !ok || p.TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

type mockDirectory struct {
	profiles map[uuid.UUID]*identity.Profile
	clinic   *identity.Tenant
}

func (d *mockDirectory) Profile(_ context.Context, id uuid.UUID) (*identity.Profile, error) {
	p, ok := d.profiles[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func (d *mockDirectory) Clinic(context.Context) (*identity.Tenant, error) {
	return d.clinic, nil
}

type mockMail struct {
	sent []notification.PrescriptionEmailRequest
	err  error
}

func (m *mockMail) SendPrescriptionEmail(_ context.Context, req notification.PrescriptionEmailRequest) (*notification.SendResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, req)
	return &notification.SendResult{Success: true, Message: "Email prepared successfully"}, nil
}

type pngRasterizer struct{}

func (pngRasterizer) Rasterize(context.Context, string) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 210, 297))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// -- Fixtures --

type fixture struct {
	repo     *mockRepo
	patients mockPatients
	dir      *mockDirectory
	mail     *mockMail
	metrics  *metrics.Collector
	svc      *Service
	catalog  *i18n.Catalog
	tenant   uuid.UUID
	doctor   uuid.UUID
	jane     *patient.Patient
	events   []middleware.AuditEvent
	changes  int
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepo(),
		patients: mockPatients{},
		mail:     &mockMail{},
		metrics:  metrics.NewCollector("test"),
		catalog:  i18n.New(i18n.French),
		tenant:   uuid.New(),
		doctor:   uuid.New(),
	}
	dob := patient.NewDate(1990, time.May, 1)
	f.jane = &patient.Patient{ID: uuid.New(), TenantID: f.tenant, FullName: "Jane Doe", DateOfBirth: &dob}
	f.patients[f.jane.ID] = f.jane

	specialty := "Médecine générale"
	f.dir = &mockDirectory{
		profiles: map[uuid.UUID]*identity.Profile{
			f.doctor: {ID: f.doctor, TenantID: &f.tenant, FullName: "Gregory House", Specialty: &specialty},
		},
		clinic: &identity.Tenant{ID: f.tenant, Name: "Clinique du Parc"},
	}

	renderer := render.New(f.catalog, pngRasterizer{}, f.metrics)
	f.svc = NewService(f.repo, f.patients, f.dir, renderer, f.mail, nil, f.metrics)
	f.svc.inTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		snapshot := make(map[uuid.UUID]*Prescription, len(f.repo.store))
		for id, p := range f.repo.store {
			snapshot[id] = clone(p)
		}
		if err := fn(ctx); err != nil {
			f.repo.store = snapshot
			return err
		}
		return nil
	}
	f.svc.SetAuditRecorder(middleware.AuditRecorderFunc(func(_ context.Context, ev middleware.AuditEvent) {
		f.events = append(f.events, ev)
	}))
	f.svc.SetChangeHook(func(uuid.UUID) { f.changes++ })
	return f
}

func (f *fixture) as(roles ...string) context.Context {
	return identity.WithIdentity(context.Background(), &identity.Identity{
		PrincipalID: f.doctor,
		Profile:     &identity.Profile{ID: f.doctor, TenantID: &f.tenant, FullName: "Gregory House"},
		Roles:       roles,
	})
}

func (f *fixture) ctx() context.Context { return f.as(identity.RoleDoctor) }

func strPtr(s string) *string { return &s }

func (f *fixture) amoxicillin() CreateRequest {
	return CreateRequest{
		PatientID: f.jane.ID,
		Medications: []Line{
			{MedicationName: "Amoxicillin", Dosage: strPtr("500mg"), Form: strPtr("capsule"), Frequency: strPtr("three_times")},
		},
	}
}

// -- Tests --

func TestLines_FiltersEmptyAndNumbersFromZero(t *testing.T) {
	got := Lines([]Line{
		{MedicationName: "  "},
		{MedicationName: "Paracetamol", SortOrder: 7},
		{MedicationName: ""},
		{MedicationName: " Ibuprofen "},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].MedicationName != "Paracetamol" || got[0].SortOrder != 0 {
		t.Errorf("unexpected first line %+v", got[0])
	}
	if got[1].MedicationName != "Ibuprofen" || got[1].SortOrder != 1 {
		t.Errorf("unexpected second line %+v", got[1])
	}
}

func TestCreate_ListIncludesPatientAndMedications(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Create(f.ctx(), f.amoxicillin())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantID != f.tenant || p.DoctorID != f.doctor {
		t.Errorf("expected caller tenant and doctor, got %s / %s", p.TenantID, p.DoctorID)
	}

	items, total, err := f.svc.List(f.ctx(), Filter{}, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected exactly one prescription, got %d", total)
	}
	got := items[0]
	if got.Patient == nil || got.Patient.FullName != "Jane Doe" {
		t.Errorf("expected Jane Doe, got %+v", got.Patient)
	}
	if len(got.Medications) != 1 || got.Medications[0].MedicationName != "Amoxicillin" || got.Medications[0].SortOrder != 0 {
		t.Errorf("unexpected medications %+v", got.Medications)
	}
	if testutil.ToFloat64(f.metrics.PrescriptionsIssued) != 1 {
		t.Error("expected issued counter to increase")
	}
	if len(f.events) != 1 || f.events[0].Action != "create" || f.events[0].EntityName != "Jane Doe" {
		t.Errorf("unexpected audit %+v", f.events)
	}
	if f.changes != 1 {
		t.Errorf("expected change hook, got %d", f.changes)
	}
}

func TestCreate_RejectsWithoutMedicationsBeforeStore(t *testing.T) {
	f := newFixture()
	req := CreateRequest{PatientID: f.jane.ID, Medications: []Line{{MedicationName: " "}, {}}}
	_, err := f.svc.Create(f.ctx(), req)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.Create(f.ctx(), CreateRequest{Medications: []Line{{MedicationName: "X"}}}); !errors.As(err, &ve) {
		t.Errorf("expected missing patient to be rejected, got %v", err)
	}
	if f.repo.calls != 0 {
		t.Errorf("expected no store calls, got %d", f.repo.calls)
	}
}

func TestCreate_ChildFailureLeavesNoParent(t *testing.T) {
	f := newFixture()
	f.repo.failInsert = true
	if _, err := f.svc.Create(f.ctx(), f.amoxicillin()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.repo.store) != 0 {
		t.Errorf("expected rollback, found %d prescriptions", len(f.repo.store))
	}
	if len(f.events) != 0 || f.changes != 0 {
		t.Error("failed create must not be audited")
	}
}

func TestCreate_Permissions(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Create(f.as(identity.RoleAssistant), f.amoxicillin()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected assistant to be refused, got %v", err)
	}
	if _, err := f.svc.Create(f.as(identity.RoleClinicAdmin), f.amoxicillin()); err != nil {
		t.Errorf("expected clinic admin to be allowed, got %v", err)
	}
}

func TestCreate_PatientOfAnotherClinic(t *testing.T) {
	f := newFixture()
	other := &patient.Patient{ID: uuid.New(), TenantID: uuid.New(), FullName: "John Roe"}
	f.patients[other.ID] = other
	req := f.amoxicillin()
	req.PatientID = other.ID
	_, err := f.svc.Create(f.ctx(), req)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error, got %v", err)
	}

	f.jane.IsArchived = true
	if _, err := f.svc.Create(f.ctx(), f.amoxicillin()); !errors.As(err, &ve) {
		t.Errorf("expected archived patient to be refused, got %v", err)
	}
}

func TestUpdate_ReplacesMedications(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())

	got, err := f.svc.Update(f.ctx(), p.ID, Patch{
		Notes:       strPtr("Take with food"),
		Medications: []Line{{MedicationName: ""}, {MedicationName: "Ibuprofen"}, {MedicationName: "Omeprazole"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.Notes != "Take with food" || len(got.Medications) != 2 {
		t.Fatalf("unexpected update %+v", got)
	}
	stored, _ := f.svc.Get(f.ctx(), p.ID)
	if stored.Medications[0].MedicationName != "Ibuprofen" || stored.Medications[1].SortOrder != 1 {
		t.Errorf("unexpected stored medications %+v", stored.Medications)
	}
	old := f.events[len(f.events)-1].OldData.(*Prescription)
	if len(old.Medications) != 1 || old.Notes != nil {
		t.Errorf("expected old snapshot, got %+v", old)
	}
}

func TestUpdate_NotesOnlyKeepsMedications(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	got, err := f.svc.Update(f.ctx(), p.ID, Patch{Notes: strPtr("Review in 7 days")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Medications) != 1 || got.Medications[0].MedicationName != "Amoxicillin" {
		t.Errorf("expected medications untouched, got %+v", got.Medications)
	}
}

func TestUpdate_EmptyMedicationsRejected(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	if _, err := f.svc.Update(f.ctx(), p.ID, Patch{Medications: []Line{}}); err == nil {
		t.Error("expected an empty medication list to be rejected")
	}
}

func TestUpdate_FailedReplaceRollsBack(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	f.repo.failInsert = true
	if _, err := f.svc.Update(f.ctx(), p.ID, Patch{Notes: strPtr("x"), Medications: []Line{{MedicationName: "Ibuprofen"}}}); err == nil {
		t.Fatal("expected error")
	}
	stored, _ := f.svc.Get(f.ctx(), p.ID)
	if stored.Notes != nil || stored.Medications[0].MedicationName != "Amoxicillin" {
		t.Errorf("expected untouched prescription, got %+v", stored)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	if err := f.svc.Delete(f.ctx(), p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Get(f.ctx(), p.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if last := f.events[len(f.events)-1]; last.Action != "delete" {
		t.Errorf("expected delete audit, got %s", last.Action)
	}
}

func TestForPatient(t *testing.T) {
	f := newFixture()
	john := &patient.Patient{ID: uuid.New(), TenantID: f.tenant, FullName: "John Smith"}
	f.patients[john.ID] = john
	f.svc.Create(f.ctx(), f.amoxicillin())
	req := f.amoxicillin()
	req.PatientID = john.ID
	f.svc.Create(f.ctx(), req)

	items, total, err := f.svc.ForPatient(f.ctx(), john.ID, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].PatientID != john.ID {
		t.Errorf("expected John's prescription only, got %v", items)
	}
	if _, _, err := f.svc.ForPatient(f.ctx(), uuid.New(), 20, 0); !apperr.IsNotFound(err) {
		t.Errorf("expected unknown patient to be not found, got %v", err)
	}
}

func TestPrint(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	html, err := f.svc.Print(f.ctx(), p.ID, "fr")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Jane Doe", "Amoxicillin", "Gregory House", "Clinique du Parc"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in document", want)
		}
	}
	if last := f.events[len(f.events)-1]; last.Action != "print" {
		t.Errorf("expected print audit, got %s", last.Action)
	}
}

func TestPrint_DoctorNoLongerInClinic(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	delete(f.dir.profiles, f.doctor)
	if _, err := f.svc.Print(f.ctx(), p.ID, "en"); err != nil {
		t.Errorf("expected document without doctor profile, got %v", err)
	}
}

func TestPDF(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	data, got, err := f.svc.PDF(f.ctx(), p.ID, "fr")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("expected a PDF document")
	}
	if name := PDFFileName(got); !strings.HasPrefix(name, "prescription-2026-10-01-") || !strings.HasSuffix(name, ".pdf") {
		t.Errorf("unexpected file name %s", name)
	}
	if last := f.events[len(f.events)-1]; last.Action != "export" {
		t.Errorf("expected export audit, got %s", last.Action)
	}
}

func TestEmail(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())

	if _, err := f.svc.Email(f.ctx(), p.ID, EmailRequest{RecipientEmail: "jane@"}); err == nil {
		t.Error("expected invalid address to be rejected")
	}

	res, err := f.svc.Email(f.ctx(), p.ID, EmailRequest{RecipientEmail: "jane@example.com", Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(f.mail.sent) != 1 {
		t.Fatalf("expected one email, got %+v", f.mail.sent)
	}
	sent := f.mail.sent[0]
	if sent.PatientName != "Jane Doe" || sent.ClinicName != "Clinique du Parc" || len(sent.Medications) != 1 {
		t.Errorf("unexpected payload %+v", sent)
	}
	if last := f.events[len(f.events)-1]; last.Action != "export" {
		t.Errorf("expected export audit, got %s", last.Action)
	}
}

func TestEmail_FailureNotAudited(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(f.ctx(), f.amoxicillin())
	f.events = nil
	f.mail.err = &notification.RequestError{Status: 400, Message: "Invalid email format"}
	if _, err := f.svc.Email(f.ctx(), p.ID, EmailRequest{RecipientEmail: "jane@example.com"}); err == nil {
		t.Fatal("expected error")
	}
	if len(f.events) != 0 {
		t.Errorf("expected no audit entry, got %+v", f.events)
	}
}
