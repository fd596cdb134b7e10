package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Posture duration bounds in minutes.
const (
	MinPostureDuration = 1
	MaxPostureDuration = 60
)

// Posture is a single exercise unit embedded in a Series. It is not a
// standalone document; it only exists inside its owning series.
type Posture struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Instructions    string             `bson:"instructions,omitempty" json:"instructions,omitempty"`
	DurationMinutes int                `bson:"durationMinutes" json:"durationMinutes"` // Bounded 1..60
	Sequence        int                `bson:"sequence" json:"sequence"`               // Order within the series
}

// Series is an instructor-authored therapy program: an ordered posture list
// plus a target session count. Once any active patient is assigned to it,
// its structure (postures, total sessions) is frozen until the last
// assignment is cleared.
type Series struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InstructorID  primitive.ObjectID `bson:"instructorId" json:"instructorId"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	TherapyType   string             `bson:"therapyType" json:"therapyType"` // Category tag, e.g. "back pain", "mobility"
	Difficulty    string             `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Postures      []Posture          `bson:"postures" json:"postures"`
	TotalSessions int                `bson:"totalSessions" json:"totalSessions"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EstimatedDurationMinutes is the sum of all posture durations.
func (s *Series) EstimatedDurationMinutes() int {
	total := 0
	for _, p := range s.Postures {
		total += p.DurationMinutes
	}
	return total
}
