package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report identifiers accepted by the export service.
const (
	ReportOverview        = "overview"
	ReportPainTrend       = "pain-trend"
	ReportTherapyTypes    = "therapy-types"
	ReportPatientProgress = "patient-progress"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ExportResult points at a stored report snapshot.
type ExportResult struct {
	ObjectKey   string    `json:"objectKey"`
	DownloadURL string    `json:"downloadUrl"`
	ContentType string    `json:"contentType"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ExportService snapshots one of the analytics rollups to object storage
// and hands back a temporary download URL. Serialization happens here; the
// aggregation itself stays in AnalyticsService.
type ExportService interface {
	ExportReport(ctx context.Context, instructorID primitive.ObjectID, report, format string) (*ExportResult, error)
}

type exportService struct {
	analytics   AnalyticsService
	fileStorage storage.FileStorage
}

// NewExportService creates a new instance of exportService.
func NewExportService(analytics AnalyticsService, fileStorage storage.FileStorage) ExportService {
	return &exportService{
		analytics:   analytics,
		fileStorage: fileStorage,
	}
}

// ExportReport renders the requested rollup and stores it under a fresh
// object key scoped to the instructor.
func (s *exportService) ExportReport(ctx context.Context, instructorID primitive.ObjectID, report, format string) (*ExportResult, error) {
	if format != FormatJSON && format != FormatCSV {
		return nil, domain.NewValidationError(domain.FieldViolation{
			Field:   "format",
			Message: "must be json or csv",
		})
	}

	var (
		body []byte
		err  error
	)
	switch report {
	case ReportOverview:
		var stats *OverviewStats
		if stats, err = s.analytics.Overview(ctx, instructorID); err == nil {
			body, err = s.renderOverview(stats, format)
		}
	case ReportPainTrend:
		var trend []WeeklyPainTrend
		if trend, err = s.analytics.PainTrend(ctx, instructorID); err == nil {
			body, err = s.renderPainTrend(trend, format)
		}
	case ReportTherapyTypes:
		var rollup []TherapyTypeStats
		if rollup, err = s.analytics.TherapyTypeRollup(ctx, instructorID); err == nil {
			body, err = s.renderTherapyTypes(rollup, format)
		}
	case ReportPatientProgress:
		var rows []PatientProgressRow
		if rows, err = s.analytics.PatientProgressRollup(ctx, instructorID); err == nil {
			body, err = s.renderPatientProgress(rows, format)
		}
	default:
		return nil, domain.NewValidationError(domain.FieldViolation{
			Field:   "report",
			Message: "unknown report name",
		})
	}
	if err != nil {
		return nil, err
	}

	contentType := "application/json"
	if format == FormatCSV {
		contentType = "text/csv"
	}

	now := time.Now().UTC()
	objectKey := path.Join("exports", instructorID.Hex(), fmt.Sprintf("%s-%s.%s", report, uuid.NewString(), format))

	if err := s.fileStorage.Upload(ctx, objectKey, contentType, body); err != nil {
		return nil, err
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		ObjectKey:   objectKey,
		DownloadURL: url,
		ContentType: contentType,
		GeneratedAt: now,
	}, nil
}

func (s *exportService) renderOverview(stats *OverviewStats, format string) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(stats)
	}
	return renderCSV(
		[]string{"total_patients", "active_patients", "total_series", "total_sessions", "avg_pain_improvement", "avg_duration_minutes", "avg_rating"},
		[][]string{{
			strconv.Itoa(stats.TotalPatients),
			strconv.Itoa(stats.ActivePatients),
			strconv.Itoa(stats.TotalSeries),
			strconv.Itoa(stats.TotalSessions),
			formatFloat(stats.AvgPainImprovement),
			formatFloat(stats.AvgDurationMinutes),
			formatFloat(stats.AvgRating),
		}},
	)
}

func (s *exportService) renderPainTrend(trend []WeeklyPainTrend, format string) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(trend)
	}
	rows := make([][]string, len(trend))
	for i, w := range trend {
		rows[i] = []string{w.Week, formatFloat(w.AvgPainBefore), formatFloat(w.AvgPainAfter), strconv.Itoa(w.SessionCount)}
	}
	return renderCSV([]string{"week", "avg_pain_before", "avg_pain_after", "session_count"}, rows)
}

func (s *exportService) renderTherapyTypes(rollup []TherapyTypeStats, format string) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(rollup)
	}
	rows := make([][]string, len(rollup))
	for i, t := range rollup {
		rows[i] = []string{
			t.TherapyType,
			strconv.Itoa(t.SeriesCount),
			strconv.Itoa(t.AssignedPatients),
			strconv.Itoa(t.SessionCount),
			formatFloat(t.AvgImprovement),
			formatFloat(t.AvgRating),
		}
	}
	return renderCSV([]string{"therapy_type", "series_count", "assigned_patients", "session_count", "avg_improvement", "avg_rating"}, rows)
}

func (s *exportService) renderPatientProgress(rowsIn []PatientProgressRow, format string) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(rowsIn)
	}
	rows := make([][]string, len(rowsIn))
	for i, r := range rowsIn {
		last := ""
		if r.LastSessionAt != nil {
			last = r.LastSessionAt.UTC().Format(time.RFC3339)
		}
		rows[i] = []string{
			r.PatientID,
			r.Name,
			r.SeriesName,
			strconv.Itoa(r.CurrentSession),
			strconv.Itoa(r.TotalSessions),
			strconv.Itoa(r.Progress.Percentage),
			strconv.FormatBool(r.Progress.IsCompleted),
			last,
			formatFloat(r.AvgImprovement),
		}
	}
	return renderCSV(
		[]string{"patient_id", "name", "series", "current_session", "total_sessions", "percentage", "completed", "last_session_at", "avg_improvement"},
		rows,
	)
}

func renderCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
