package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/notification"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes. They keep the same contract as the mongo
// implementations, including the conditional-write semantics of
// AdvanceProgress and the unique (patientId, sessionNumber) constraint,
// so concurrency behavior can be exercised without a database.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	id := primitive.NewObjectID()
	cp := *user
	cp.ID = id
	r.users[id] = &cp
	return id, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakePatientRepo struct {
	mu       sync.Mutex
	patients map[primitive.ObjectID]*domain.Patient

	// onGetByID, when set, runs after the read in every GetByID call. Tests
	// use it as a barrier to force two callers to read the same state
	// before either writes.
	onGetByID func()
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[primitive.ObjectID]*domain.Patient)}
}

func (r *fakePatientRepo) Create(_ context.Context, patient *domain.Patient) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := primitive.NewObjectID()
	cp := *patient
	cp.ID = id
	cp.IsActive = true
	r.patients[id] = &cp
	return id, nil
}

func (r *fakePatientRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Patient, error) {
	r.mu.Lock()
	p, ok := r.patients[id]
	if !ok {
		r.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	cp := *p
	r.mu.Unlock()
	if r.onGetByID != nil {
		r.onGetByID()
	}
	return &cp, nil
}

func (r *fakePatientRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) (*domain.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.UserID != nil && *p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakePatientRepo) GetByInstructorID(_ context.Context, instructorID primitive.ObjectID) ([]domain.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Patient
	for _, p := range r.patients {
		if p.InstructorID == instructorID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakePatientRepo) UpdateDemographics(_ context.Context, patient *domain.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patient.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Name = patient.Name
	p.Email = patient.Email
	p.Age = patient.Age
	p.Gender = patient.Gender
	p.Phone = patient.Phone
	p.HealthNotes = patient.HealthNotes
	return nil
}

func (r *fakePatientRepo) LinkUser(_ context.Context, patientID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	uid := userID
	p.UserID = &uid
	return nil
}

func (r *fakePatientRepo) Deactivate(_ context.Context, id, instructorID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok || p.InstructorID != instructorID || !p.IsActive {
		return repository.ErrNotFound
	}
	p.IsActive = false
	return nil
}

func (r *fakePatientRepo) SetAssignedSeries(_ context.Context, patientID primitive.ObjectID, seriesID *primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	if seriesID == nil {
		p.AssignedSeriesID = nil
	} else {
		sid := *seriesID
		p.AssignedSeriesID = &sid
	}
	p.CurrentSession = 0
	return nil
}

func (r *fakePatientRepo) AdvanceProgress(_ context.Context, patientID, seriesID primitive.ObjectID, fromSession int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	if !p.IsActive || p.AssignedSeriesID == nil || *p.AssignedSeriesID != seriesID || p.CurrentSession != fromSession {
		return repository.ErrStaleWrite
	}
	p.CurrentSession = fromSession + 1
	p.TotalSessionsCompleted++
	return nil
}

func (r *fakePatientRepo) CountActiveBySeries(_ context.Context, seriesID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, p := range r.patients {
		if p.IsActive && p.AssignedSeriesID != nil && *p.AssignedSeriesID == seriesID {
			count++
		}
	}
	return count, nil
}

type fakeSeriesRepo struct {
	mu     sync.Mutex
	series map[primitive.ObjectID]*domain.Series
}

func newFakeSeriesRepo() *fakeSeriesRepo {
	return &fakeSeriesRepo{series: make(map[primitive.ObjectID]*domain.Series)}
}

func (r *fakeSeriesRepo) Create(_ context.Context, series *domain.Series) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := primitive.NewObjectID()
	cp := *series
	cp.ID = id
	for i := range cp.Postures {
		if cp.Postures[i].ID == primitive.NilObjectID {
			cp.Postures[i].ID = primitive.NewObjectID()
		}
	}
	r.series[id] = &cp
	return id, nil
}

func (r *fakeSeriesRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSeriesRepo) GetByInstructorID(_ context.Context, instructorID primitive.ObjectID) ([]domain.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Series
	for _, s := range r.series {
		if s.InstructorID == instructorID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeSeriesRepo) Update(_ context.Context, series *domain.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.series[series.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *series
	r.series[series.ID] = &cp
	return nil
}

func (r *fakeSeriesRepo) Delete(_ context.Context, id, instructorID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[id]
	if !ok || s.InstructorID != instructorID {
		return repository.ErrNotFound
	}
	delete(r.series, id)
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions []domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.PatientID == session.PatientID && s.SessionNumber == session.SessionNumber {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	id := primitive.NewObjectID()
	cp := *session
	cp.ID = id
	r.sessions = append(r.sessions, cp)
	return id, nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) GetByPatientID(_ context.Context, patientID primitive.ObjectID) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, s := range r.sessions {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out, nil
}

func (r *fakeSessionRepo) GetByInstructorID(_ context.Context, instructorID primitive.ObjectID, since *time.Time) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, s := range r.sessions {
		if s.InstructorID != instructorID {
			continue
		}
		if since != nil && s.CompletedAt.Before(*since) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (r *fakeSessionRepo) UpdateFeedback(_ context.Context, id, patientID primitive.ObjectID, comment *string, rating *int) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		if r.sessions[i].ID == id && r.sessions[i].PatientID == patientID {
			if comment != nil {
				r.sessions[i].Comment = *comment
			}
			if rating != nil {
				v := *rating
				r.sessions[i].Rating = &v
			}
			cp := r.sessions[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// noopTxRunner runs the function directly. The fakes apply writes
// immediately, and the services order their transactional writes so the
// conditional advance runs first, which keeps the semantics equivalent
// for the paths under test.
type noopTxRunner struct{}

func (noopTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingNotifier captures every emitted event.
type recordingNotifier struct {
	mu        sync.Mutex
	assigned  []notification.SeriesAssignedEvent
	completed []notification.SessionCompletedEvent
}

func (n *recordingNotifier) SeriesAssigned(_ context.Context, event notification.SeriesAssignedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, event)
	return nil
}

func (n *recordingNotifier) SessionCompleted(_ context.Context, event notification.SessionCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, event)
	return nil
}

func (n *recordingNotifier) completedEvents() []notification.SessionCompletedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.SessionCompletedEvent, len(n.completed))
	copy(out, n.completed)
	return out
}

// Seed helpers shared across the service tests.

func seedPatient(t *testing.T, repo *fakePatientRepo, instructorID primitive.ObjectID, name string) *domain.Patient {
	t.Helper()
	id, err := repo.Create(context.Background(), &domain.Patient{
		InstructorID: instructorID,
		Name:         name,
	})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	p, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

func seedSeries(t *testing.T, repo *fakeSeriesRepo, instructorID primitive.ObjectID, name, therapyType string, totalSessions int) *domain.Series {
	t.Helper()
	id, err := repo.Create(context.Background(), &domain.Series{
		InstructorID:  instructorID,
		Name:          name,
		TherapyType:   therapyType,
		TotalSessions: totalSessions,
		Postures: []domain.Posture{
			{Name: "Mountain", DurationMinutes: 5, Sequence: 1},
			{Name: "Child's pose", DurationMinutes: 10, Sequence: 2},
		},
	})
	if err != nil {
		t.Fatalf("seed series: %v", err)
	}
	s, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("seed series: %v", err)
	}
	return s
}

func assignSeries(t *testing.T, repo *fakePatientRepo, patientID, seriesID primitive.ObjectID) {
	t.Helper()
	if err := repo.SetAssignedSeries(context.Background(), patientID, &seriesID); err != nil {
		t.Fatalf("assign series: %v", err)
	}
}
