package submissionstore_test

import (
	"testing"
	"time"

	submissionstore "github.com/dalemusser/stratatopics/internal/app/store/submissions"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"github.com/dalemusser/stratatopics/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_HasSubmittedWork(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := submissionstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	assignment := primitive.NewObjectID()
	withLink := primitive.NewObjectID()
	withFile := primitive.NewObjectID()
	empty := primitive.NewObjectID()
	nothing := primitive.NewObjectID()

	fixtures.CreateSubmission(ctx, assignment, withLink, []string{"https://github.com/x/y"}, nil)
	fixtures.CreateSubmission(ctx, assignment, withFile, nil, []models.SubmittedFile{{Name: "report.pdf", Path: "a/b", UploadedAt: time.Now()}})
	fixtures.CreateSubmission(ctx, assignment, empty, []string{}, []models.SubmittedFile{})

	tests := []struct {
		name string
		team primitive.ObjectID
		want bool
	}{
		{"hyperlink", withLink, true},
		{"file", withFile, true},
		{"empty submission", empty, false},
		{"no submission", nothing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.HasSubmittedWork(ctx, tt.team, assignment)
			if err != nil {
				t.Fatalf("HasSubmittedWork failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasSubmittedWork = %v, want %v", got, tt.want)
			}
		})
	}

	// Work for another assignment does not count.
	got, _ := store.HasSubmittedWork(ctx, withLink, primitive.NewObjectID())
	if got {
		t.Error("submission of another assignment must not count")
	}

	sub, err := store.Get(ctx, withFile, assignment)
	if err != nil || !sub.HasWork() {
		t.Errorf("Get = %+v, %v", sub, err)
	}
}
