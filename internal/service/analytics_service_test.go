package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"yogatherapy/backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type analyticsEnv struct {
	patients *fakePatientRepo
	series   *fakeSeriesRepo
	sessions *fakeSessionRepo
	svc      AnalyticsService
}

func newAnalyticsEnv() *analyticsEnv {
	env := &analyticsEnv{
		patients: newFakePatientRepo(),
		series:   newFakeSeriesRepo(),
		sessions: newFakeSessionRepo(),
	}
	env.svc = NewAnalyticsService(env.patients, env.series, env.sessions)
	return env
}

func (env *analyticsEnv) seedSession(t *testing.T, instructorID primitive.ObjectID, patient *domain.Patient, seriesID primitive.ObjectID, number, painBefore, painAfter, duration int, rating *int, completedAt time.Time) {
	t.Helper()
	_, err := env.sessions.Create(context.Background(), &domain.Session{
		PatientID:       patient.ID,
		SeriesID:        seriesID,
		InstructorID:    instructorID,
		SessionNumber:   number,
		PainBefore:      painBefore,
		PainAfter:       painAfter,
		Comment:         "session went as planned",
		DurationMinutes: duration,
		Rating:          rating,
		CompletedAt:     completedAt,
	})
	require.NoError(t, err)
}

func TestOverviewEmpty(t *testing.T) {
	env := newAnalyticsEnv()
	stats, err := env.svc.Overview(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	require.Equal(t, &OverviewStats{}, stats)
}

func TestOverview(t *testing.T) {
	env := newAnalyticsEnv()
	instructorID := primitive.NewObjectID()
	active := seedPatient(t, env.patients, instructorID, "Asha")
	inactive := seedPatient(t, env.patients, instructorID, "Ravi")
	require.NoError(t, env.patients.Deactivate(context.Background(), inactive.ID, instructorID))
	series := seedSeries(t, env.series, instructorID, "Back Care", "back-pain", 10)

	now := time.Now().UTC()
	r4, r5 := 4, 5
	env.seedSession(t, instructorID, active, series.ID, 1, 6, 3, 30, &r4, now.Add(-48*time.Hour))
	env.seedSession(t, instructorID, active, series.ID, 2, 8, 4, 45, &r5, now.Add(-24*time.Hour))
	env.seedSession(t, instructorID, active, series.ID, 3, 5, 5, 60, nil, now)

	stats, err := env.svc.Overview(context.Background(), instructorID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalPatients)
	require.Equal(t, 1, stats.ActivePatients)
	require.Equal(t, 1, stats.TotalSeries)
	require.Equal(t, 3, stats.TotalSessions)
	require.Equal(t, 2.3, stats.AvgPainImprovement) // (3+4+0)/3
	require.Equal(t, 45.0, stats.AvgDurationMinutes)
	require.Equal(t, 4.5, stats.AvgRating) // unrated sessions excluded
}

func TestPainTrendBucketsByWeekChronologically(t *testing.T) {
	env := newAnalyticsEnv()
	instructorID := primitive.NewObjectID()
	patient := seedPatient(t, env.patients, instructorID, "Mira")
	series := seedSeries(t, env.series, instructorID, "Back Care", "back-pain", 10)

	thisWeek := time.Now().UTC()
	lastWeek := thisWeek.AddDate(0, 0, -7)
	env.seedSession(t, instructorID, patient, series.ID, 1, 6, 3, 30, nil, lastWeek)
	env.seedSession(t, instructorID, patient, series.ID, 2, 8, 5, 30, nil, lastWeek)
	env.seedSession(t, instructorID, patient, series.ID, 3, 5, 2, 30, nil, thisWeek)

	trend, err := env.svc.PainTrend(context.Background(), instructorID)
	require.NoError(t, err)
	require.Len(t, trend, 2)

	y1, w1 := lastWeek.ISOWeek()
	require.Equal(t, fmt.Sprintf("%d-W%02d", y1, w1), trend[0].Week)
	require.Equal(t, 7.0, trend[0].AvgPainBefore)
	require.Equal(t, 4.0, trend[0].AvgPainAfter)
	require.Equal(t, 2, trend[0].SessionCount)

	y2, w2 := thisWeek.ISOWeek()
	require.Equal(t, fmt.Sprintf("%d-W%02d", y2, w2), trend[1].Week)
	require.Equal(t, 5.0, trend[1].AvgPainBefore)
	require.Equal(t, 2.0, trend[1].AvgPainAfter)
	require.Equal(t, 1, trend[1].SessionCount)
}

func TestPainTrendEmpty(t *testing.T) {
	env := newAnalyticsEnv()
	trend, err := env.svc.PainTrend(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	require.Empty(t, trend)
}

func TestTherapyTypeRollup(t *testing.T) {
	env := newAnalyticsEnv()
	instructorID := primitive.NewObjectID()
	backCare := seedSeries(t, env.series, instructorID, "Back Care", "back-pain", 10)
	seedSeries(t, env.series, instructorID, "Sleep Aid", "insomnia", 8)

	assigned := seedPatient(t, env.patients, instructorID, "Asha")
	assignSeries(t, env.patients, assigned.ID, backCare.ID)
	inactive := seedPatient(t, env.patients, instructorID, "Ravi")
	assignSeries(t, env.patients, inactive.ID, backCare.ID)
	require.NoError(t, env.patients.Deactivate(context.Background(), inactive.ID, instructorID))

	now := time.Now().UTC()
	r4 := 4
	env.seedSession(t, instructorID, assigned, backCare.ID, 1, 7, 4, 30, &r4, now.Add(-time.Hour))
	env.seedSession(t, instructorID, assigned, backCare.ID, 2, 8, 3, 30, nil, now)
	// Recorded against a series that has since been deleted; no category left.
	env.seedSession(t, instructorID, assigned, primitive.NewObjectID(), 3, 5, 5, 30, nil, now)

	rollup, err := env.svc.TherapyTypeRollup(context.Background(), instructorID)
	require.NoError(t, err)
	require.Len(t, rollup, 2)

	require.Equal(t, "back-pain", rollup[0].TherapyType)
	require.Equal(t, 1, rollup[0].SeriesCount)
	require.Equal(t, 1, rollup[0].AssignedPatients) // inactive assignment excluded
	require.Equal(t, 2, rollup[0].SessionCount)
	require.Equal(t, 4.0, rollup[0].AvgImprovement) // (3+5)/2
	require.Equal(t, 4.0, rollup[0].AvgRating)

	require.Equal(t, "insomnia", rollup[1].TherapyType)
	require.Equal(t, 1, rollup[1].SeriesCount)
	require.Equal(t, 0, rollup[1].SessionCount)
	require.Equal(t, 0.0, rollup[1].AvgImprovement)
}

func TestPatientProgressRollupOrdering(t *testing.T) {
	env := newAnalyticsEnv()
	instructorID := primitive.NewObjectID()
	series := seedSeries(t, env.series, instructorID, "Back Care", "back-pain", 10)

	ana := seedPatient(t, env.patients, instructorID, "Ana")
	bo := seedPatient(t, env.patients, instructorID, "Bo")
	cara := seedPatient(t, env.patients, instructorID, "Cara")
	for p, current := range map[primitive.ObjectID]int{ana.ID: 5, bo.ID: 8, cara.ID: 5} {
		assignSeries(t, env.patients, p, series.ID)
		for i := 0; i < current; i++ {
			require.NoError(t, env.patients.AdvanceProgress(context.Background(), p, series.ID, i))
		}
	}
	// Unassigned and inactive patients never appear in the table.
	seedPatient(t, env.patients, instructorID, "Drifter")
	inactive := seedPatient(t, env.patients, instructorID, "Eli")
	assignSeries(t, env.patients, inactive.ID, series.ID)
	require.NoError(t, env.patients.Deactivate(context.Background(), inactive.ID, instructorID))

	lastAt := time.Now().UTC().Truncate(time.Second)
	env.seedSession(t, instructorID, ana, series.ID, 1, 8, 4, 30, nil, lastAt.Add(-time.Hour))
	env.seedSession(t, instructorID, ana, series.ID, 2, 7, 4, 30, nil, lastAt)

	rows, err := env.svc.PatientProgressRollup(context.Background(), instructorID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "Bo", rows[0].Name)
	require.Equal(t, 80, rows[0].Progress.Percentage)
	require.Equal(t, "Ana", rows[1].Name) // 50% tie broken by name
	require.Equal(t, "Cara", rows[2].Name)

	require.NotNil(t, rows[1].LastSessionAt)
	require.True(t, rows[1].LastSessionAt.Equal(lastAt))
	require.Equal(t, 3.5, rows[1].AvgImprovement) // (4+3)/2
	require.Nil(t, rows[2].LastSessionAt)
}
