package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bounds for session input fields.
const (
	MinPainScore     = 0
	MaxPainScore     = 10
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 10
)

// Session is an append-only record of one completed practice instance.
// SessionNumber is 1-based and must equal the patient's CurrentSession+1 at
// creation time; for a given patient the numbers form a contiguous sequence
// with no gaps or duplicates, backed by a unique (patientId, sessionNumber)
// index. After creation only Comment and Rating may change.
type Session struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID     primitive.ObjectID `bson:"patientId" json:"patientId"`
	SeriesID      primitive.ObjectID `bson:"seriesId" json:"seriesId"`
	InstructorID  primitive.ObjectID `bson:"instructorId" json:"instructorId"` // Denormalized for instructor-scoped queries
	SessionNumber int                `bson:"sessionNumber" json:"sessionNumber"`

	PainBefore int    `bson:"painBefore" json:"painBefore"` // 0..10
	PainAfter  int    `bson:"painAfter" json:"painAfter"`   // 0..10
	MoodBefore string `bson:"moodBefore,omitempty" json:"moodBefore,omitempty"`
	MoodAfter  string `bson:"moodAfter,omitempty" json:"moodAfter,omitempty"`
	Comment    string `bson:"comment" json:"comment"` // Minimum length enforced at recording time

	DurationMinutes   int  `bson:"durationMinutes" json:"durationMinutes"`
	PosturesCompleted int  `bson:"posturesCompleted" json:"posturesCompleted"`
	PosturesSkipped   int  `bson:"posturesSkipped" json:"posturesSkipped"`
	Rating            *int `bson:"rating,omitempty" json:"rating,omitempty"` // 1..5 when present

	CompletedAt time.Time `bson:"completedAt" json:"completedAt"`
}

// PainImprovement is the recorded pain delta; positive means the session helped.
func (s *Session) PainImprovement() int {
	return s.PainBefore - s.PainAfter
}
