package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trailing window for the pain trend, in ISO weeks.
const painTrendWeeks = 8

// OverviewStats is the instructor dashboard rollup. Averages cover only
// sessions carrying the value; empty sets yield 0, never NaN — downstream
// renderers assume numeric fields.
type OverviewStats struct {
	TotalPatients      int     `json:"totalPatients"`
	ActivePatients     int     `json:"activePatients"`
	TotalSeries        int     `json:"totalSeries"`
	TotalSessions      int     `json:"totalSessions"`
	AvgPainImprovement float64 `json:"avgPainImprovement"`
	AvgDurationMinutes float64 `json:"avgDurationMinutes"`
	AvgRating          float64 `json:"avgRating"`
}

// WeeklyPainTrend is one ISO-week bucket of the pain trend.
type WeeklyPainTrend struct {
	Week          string  `json:"week"` // ISO week label, e.g. "2026-W35"
	AvgPainBefore float64 `json:"avgPainBefore"`
	AvgPainAfter  float64 `json:"avgPainAfter"`
	SessionCount  int     `json:"sessionCount"`
}

// TherapyTypeStats is the per-category rollup.
type TherapyTypeStats struct {
	TherapyType      string  `json:"therapyType"`
	SeriesCount      int     `json:"seriesCount"`
	AssignedPatients int     `json:"assignedPatients"`
	SessionCount     int     `json:"sessionCount"`
	AvgImprovement   float64 `json:"avgImprovement"`
	AvgRating        float64 `json:"avgRating"`
}

// PatientProgressRow is one row of the per-patient progress rollup.
type PatientProgressRow struct {
	PatientID      string          `json:"patientId"`
	Name           string          `json:"name"`
	SeriesID       string          `json:"seriesId"`
	SeriesName     string          `json:"seriesName"`
	CurrentSession int             `json:"currentSession"`
	TotalSessions  int             `json:"totalSessions"`
	Progress       domain.Progress `json:"progress"`
	LastSessionAt  *time.Time      `json:"lastSessionAt"`
	AvgImprovement float64         `json:"avgImprovement"`
}

// AnalyticsService is the stateless read side: each call folds the current
// session history into a report structure. Nothing is cached, so results
// track writes between calls; reads are not required to be transactionally
// consistent with in-flight recordings.
type AnalyticsService interface {
	Overview(ctx context.Context, instructorID primitive.ObjectID) (*OverviewStats, error)
	PainTrend(ctx context.Context, instructorID primitive.ObjectID) ([]WeeklyPainTrend, error)
	TherapyTypeRollup(ctx context.Context, instructorID primitive.ObjectID) ([]TherapyTypeStats, error)
	PatientProgressRollup(ctx context.Context, instructorID primitive.ObjectID) ([]PatientProgressRow, error)
}

type analyticsService struct {
	patientRepo repository.PatientRepository
	seriesRepo  repository.SeriesRepository
	sessionRepo repository.SessionRepository
}

// NewAnalyticsService creates a new instance of analyticsService.
func NewAnalyticsService(
	patientRepo repository.PatientRepository,
	seriesRepo repository.SeriesRepository,
	sessionRepo repository.SessionRepository,
) AnalyticsService {
	return &analyticsService{
		patientRepo: patientRepo,
		seriesRepo:  seriesRepo,
		sessionRepo: sessionRepo,
	}
}

// Overview computes the instructor-wide counts and averages.
func (s *analyticsService) Overview(ctx context.Context, instructorID primitive.ObjectID) (*OverviewStats, error) {
	patients, err := s.patientRepo.GetByInstructorID(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	series, err := s.seriesRepo.GetByInstructorID(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.GetByInstructorID(ctx, instructorID, nil)
	if err != nil {
		return nil, err
	}

	stats := &OverviewStats{
		TotalPatients: len(patients),
		TotalSeries:   len(series),
		TotalSessions: len(sessions),
	}
	for _, p := range patients {
		if p.IsActive {
			stats.ActivePatients++
		}
	}

	var improvementSum, durationSum, ratingSum float64
	ratingCount := 0
	for _, sess := range sessions {
		improvementSum += float64(sess.PainImprovement())
		durationSum += float64(sess.DurationMinutes)
		if sess.Rating != nil {
			ratingSum += float64(*sess.Rating)
			ratingCount++
		}
	}
	if len(sessions) > 0 {
		stats.AvgPainImprovement = domain.RoundAvg(improvementSum / float64(len(sessions)))
		stats.AvgDurationMinutes = domain.RoundAvg(durationSum / float64(len(sessions)))
	}
	if ratingCount > 0 {
		stats.AvgRating = domain.RoundAvg(ratingSum / float64(ratingCount))
	}
	return stats, nil
}

// PainTrend buckets the trailing eight ISO weeks of sessions into per-week
// pain averages, oldest week first. The repository returns newest-first;
// the fold reverses before bucketing so output stays chronological.
func (s *analyticsService) PainTrend(ctx context.Context, instructorID primitive.ObjectID) ([]WeeklyPainTrend, error) {
	since := startOfISOWeek(time.Now().UTC()).AddDate(0, 0, -7*(painTrendWeeks-1))
	sessions, err := s.sessionRepo.GetByInstructorID(ctx, instructorID, &since)
	if err != nil {
		return nil, err
	}

	// Newest-first to chronological.
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}

	type bucket struct {
		key       int // sortable year*100+week
		label     string
		beforeSum float64
		afterSum  float64
		count     int
	}
	buckets := map[int]*bucket{}
	for _, sess := range sessions {
		year, week := sess.CompletedAt.UTC().ISOWeek()
		key := year*100 + week
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, label: fmt.Sprintf("%d-W%02d", year, week)}
			buckets[key] = b
		}
		b.beforeSum += float64(sess.PainBefore)
		b.afterSum += float64(sess.PainAfter)
		b.count++
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })

	trend := make([]WeeklyPainTrend, len(ordered))
	for i, b := range ordered {
		trend[i] = WeeklyPainTrend{
			Week:          b.label,
			AvgPainBefore: domain.RoundAvg(b.beforeSum / float64(b.count)),
			AvgPainAfter:  domain.RoundAvg(b.afterSum / float64(b.count)),
			SessionCount:  b.count,
		}
	}
	return trend, nil
}

// TherapyTypeRollup aggregates series, assignments and sessions per
// category tag.
func (s *analyticsService) TherapyTypeRollup(ctx context.Context, instructorID primitive.ObjectID) ([]TherapyTypeStats, error) {
	series, err := s.seriesRepo.GetByInstructorID(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	patients, err := s.patientRepo.GetByInstructorID(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.GetByInstructorID(ctx, instructorID, nil)
	if err != nil {
		return nil, err
	}

	typeBySeries := make(map[primitive.ObjectID]string, len(series))
	type agg struct {
		stats          TherapyTypeStats
		improvementSum float64
		ratingSum      float64
		ratingCount    int
	}
	byType := map[string]*agg{}
	get := func(therapyType string) *agg {
		a, ok := byType[therapyType]
		if !ok {
			a = &agg{stats: TherapyTypeStats{TherapyType: therapyType}}
			byType[therapyType] = a
		}
		return a
	}

	for _, sr := range series {
		typeBySeries[sr.ID] = sr.TherapyType
		get(sr.TherapyType).stats.SeriesCount++
	}
	for _, p := range patients {
		if !p.IsActive || !p.HasAssignedSeries() {
			continue
		}
		if t, ok := typeBySeries[*p.AssignedSeriesID]; ok {
			get(t).stats.AssignedPatients++
		}
	}
	for _, sess := range sessions {
		t, ok := typeBySeries[sess.SeriesID]
		if !ok {
			// Session against a deleted series; its category is gone.
			continue
		}
		a := get(t)
		a.stats.SessionCount++
		a.improvementSum += float64(sess.PainImprovement())
		if sess.Rating != nil {
			a.ratingSum += float64(*sess.Rating)
			a.ratingCount++
		}
	}

	result := make([]TherapyTypeStats, 0, len(byType))
	for _, a := range byType {
		if a.stats.SessionCount > 0 {
			a.stats.AvgImprovement = domain.RoundAvg(a.improvementSum / float64(a.stats.SessionCount))
		}
		if a.ratingCount > 0 {
			a.stats.AvgRating = domain.RoundAvg(a.ratingSum / float64(a.ratingCount))
		}
		result = append(result, a.stats)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TherapyType < result[j].TherapyType })
	return result, nil
}

// PatientProgressRollup lists every active patient with an assigned series
// joined to their derived progress, ordered by descending percentage with
// name as the tie-break.
func (s *analyticsService) PatientProgressRollup(ctx context.Context, instructorID primitive.ObjectID) ([]PatientProgressRow, error) {
	patients, err := s.patientRepo.GetByInstructorID(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	series, err := s.seriesRepo.GetByInstructorID(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.GetByInstructorID(ctx, instructorID, nil)
	if err != nil {
		return nil, err
	}

	seriesByID := make(map[primitive.ObjectID]*domain.Series, len(series))
	for i := range series {
		seriesByID[series[i].ID] = &series[i]
	}

	type patientAgg struct {
		improvementSum float64
		count          int
		last           time.Time
	}
	byPatient := map[primitive.ObjectID]*patientAgg{}
	for _, sess := range sessions {
		a, ok := byPatient[sess.PatientID]
		if !ok {
			a = &patientAgg{}
			byPatient[sess.PatientID] = a
		}
		a.improvementSum += float64(sess.PainImprovement())
		a.count++
		if sess.CompletedAt.After(a.last) {
			a.last = sess.CompletedAt
		}
	}

	rows := make([]PatientProgressRow, 0, len(patients))
	for _, p := range patients {
		if !p.IsActive || !p.HasAssignedSeries() {
			continue
		}
		sr, ok := seriesByID[*p.AssignedSeriesID]
		if !ok {
			continue
		}
		row := PatientProgressRow{
			PatientID:      p.ID.Hex(),
			Name:           p.Name,
			SeriesID:       sr.ID.Hex(),
			SeriesName:     sr.Name,
			CurrentSession: p.CurrentSession,
			TotalSessions:  sr.TotalSessions,
			Progress:       domain.ComputeProgress(p.CurrentSession, sr.TotalSessions),
		}
		if a, ok := byPatient[p.ID]; ok && a.count > 0 {
			last := a.last
			row.LastSessionAt = &last
			row.AvgImprovement = domain.RoundAvg(a.improvementSum / float64(a.count))
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Progress.Percentage != rows[j].Progress.Percentage {
			return rows[i].Progress.Percentage > rows[j].Progress.Percentage
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

// startOfISOWeek truncates t to the Monday starting its ISO week.
func startOfISOWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
