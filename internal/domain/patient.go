package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Patient is the therapy record of a person managed by an Instructor.
// Progress counters are mutated only by series assignment and session
// recording; demographics are free-form instructor input.
//
// Invariants:
//   - at most one non-nil AssignedSeriesID at any time
//   - 0 <= CurrentSession <= series.TotalSessions while a series is assigned
//   - TotalSessionsCompleted is lifetime-monotonic and survives reassignment
type Patient struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	InstructorID primitive.ObjectID  `bson:"instructorId" json:"instructorId"` // Owning instructor
	UserID       *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"` // Linked login account, if the patient registered
	Name         string              `bson:"name" json:"name"`
	Email        string              `bson:"email,omitempty" json:"email,omitempty"`
	Age          *int                `bson:"age,omitempty" json:"age,omitempty"`
	Gender       string              `bson:"gender,omitempty" json:"gender,omitempty"`
	Phone        string              `bson:"phone,omitempty" json:"phone,omitempty"`
	HealthNotes  string              `bson:"healthNotes,omitempty" json:"healthNotes,omitempty"` // Injuries, contraindications etc.

	AssignedSeriesID       *primitive.ObjectID `bson:"assignedSeriesId,omitempty" json:"assignedSeriesId,omitempty"`
	CurrentSession         int                 `bson:"currentSession" json:"currentSession"`                 // Sessions completed under the current series
	TotalSessionsCompleted int                 `bson:"totalSessionsCompleted" json:"totalSessionsCompleted"` // Lifetime counter, never reset

	IsActive  bool      `bson:"isActive" json:"isActive"` // Soft delete flag; inactive patients keep their session history
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasAssignedSeries reports whether the patient is currently bound to a series.
func (p *Patient) HasAssignedSeries() bool {
	return p.AssignedSeriesID != nil && *p.AssignedSeriesID != primitive.NilObjectID
}
