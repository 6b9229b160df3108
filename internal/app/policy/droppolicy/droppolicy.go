// Package droppolicy decides whether a team may still drop its topic.
//
// The guard is evaluated before every drop, whoever initiates it. The
// allocation engine does not re-check it.
package droppolicy

import (
	"context"
	"fmt"
	"time"

	duedatestore "github.com/dalemusser/stratatopics/internal/app/store/duedates"
	submissionstore "github.com/dalemusser/stratatopics/internal/app/store/submissions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Reason explains a denied drop.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonAlreadySubmitted Reason = "already_submitted"
	ReasonPastDeadline     Reason = "past_deadline"
)

// Message is the user-facing text for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonAlreadySubmitted:
		return "This team has already submitted work and can no longer drop its topic."
	case ReasonPastDeadline:
		return "The deadline for dropping a topic has passed."
	default:
		return ""
	}
}

// Decision is the guard's verdict.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// SubmissionChecker reports whether a team has handed in work.
type SubmissionChecker interface {
	HasSubmittedWork(ctx context.Context, teamID, assignmentID primitive.ObjectID) (bool, error)
}

// DeadlineSource returns the assignment's drop deadline, nil when there is none.
type DeadlineSource interface {
	DropDeadline(ctx context.Context, assignmentID primitive.ObjectID) (*time.Time, error)
}

// Guard evaluates drop requests.
type Guard struct {
	subs      SubmissionChecker
	deadlines DeadlineSource
	now       func() time.Time
}

type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func New(subs SubmissionChecker, deadlines DeadlineSource, opts ...Option) *Guard {
	g := &Guard{subs: subs, deadlines: deadlines, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// NewFromDB wires the guard to the submission and due-date collections.
func NewFromDB(db *mongo.Database, opts ...Option) *Guard {
	return New(submissionstore.New(db), duedatestore.New(db), opts...)
}

// CanDrop reports whether teamID may drop its topic in assignmentID.
// Submitted work blocks a drop first; otherwise a drop is blocked once now is
// strictly after the drop deadline.
func (g *Guard) CanDrop(ctx context.Context, teamID, assignmentID primitive.ObjectID) (Decision, error) {
	submitted, err := g.subs.HasSubmittedWork(ctx, teamID, assignmentID)
	if err != nil {
		return Decision{}, fmt.Errorf("check submissions: %w", err)
	}
	if submitted {
		return deny(ReasonAlreadySubmitted), nil
	}

	deadline, err := g.deadlines.DropDeadline(ctx, assignmentID)
	if err != nil {
		return Decision{}, fmt.Errorf("load drop deadline: %w", err)
	}
	if deadline != nil && g.now().After(*deadline) {
		return deny(ReasonPastDeadline), nil
	}
	return allow(), nil
}
