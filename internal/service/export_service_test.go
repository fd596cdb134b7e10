package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"yogatherapy/backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeFileStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeFileStorage() *fakeFileStorage {
	return &fakeFileStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeFileStorage) Upload(_ context.Context, objectKey, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[objectKey] = cp
	s.types[objectKey] = contentType
	return nil
}

func (s *fakeFileStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.test/" + objectKey, nil
}

func (s *fakeFileStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

func newExportEnv(t *testing.T) (*analyticsEnv, *fakeFileStorage, ExportService, primitive.ObjectID) {
	t.Helper()
	env := newAnalyticsEnv()
	files := newFakeFileStorage()
	svc := NewExportService(env.svc, files)

	instructorID := primitive.NewObjectID()
	patient := seedPatient(t, env.patients, instructorID, "Asha")
	series := seedSeries(t, env.series, instructorID, "Back Care", "back-pain", 10)
	assignSeries(t, env.patients, patient.ID, series.ID)
	env.seedSession(t, instructorID, patient, series.ID, 1, 7, 4, 40, nil, time.Now().UTC())
	return env, files, svc, instructorID
}

func TestExportOverviewJSON(t *testing.T) {
	_, files, svc, instructorID := newExportEnv(t)

	result, err := svc.ExportReport(context.Background(), instructorID, ReportOverview, FormatJSON)
	require.NoError(t, err)
	require.Equal(t, "application/json", result.ContentType)
	require.Contains(t, result.ObjectKey, "exports/"+instructorID.Hex()+"/overview-")
	require.Equal(t, "https://storage.test/"+result.ObjectKey, result.DownloadURL)

	var stats OverviewStats
	require.NoError(t, json.Unmarshal(files.objects[result.ObjectKey], &stats))
	require.Equal(t, 1, stats.TotalSessions)
	require.Equal(t, 3.0, stats.AvgPainImprovement)
}

func TestExportPainTrendCSV(t *testing.T) {
	_, files, svc, instructorID := newExportEnv(t)

	result, err := svc.ExportReport(context.Background(), instructorID, ReportPainTrend, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", result.ContentType)

	records, err := csv.NewReader(strings.NewReader(string(files.objects[result.ObjectKey]))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2) // header plus one week
	require.Equal(t, []string{"week", "avg_pain_before", "avg_pain_after", "session_count"}, records[0])
	require.Equal(t, "7.0", records[1][1])
	require.Equal(t, "4.0", records[1][2])
	require.Equal(t, "1", records[1][3])
}

func TestExportRejectsUnknownInputs(t *testing.T) {
	_, _, svc, instructorID := newExportEnv(t)

	_, err := svc.ExportReport(context.Background(), instructorID, "bogus", FormatJSON)
	require.True(t, domain.IsCode(err, domain.CodeValidation))
	_, err = svc.ExportReport(context.Background(), instructorID, ReportOverview, "xml")
	require.True(t, domain.IsCode(err, domain.CodeValidation))
}
