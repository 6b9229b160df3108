package topicstore_test

import (
	"errors"
	"testing"

	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"github.com/dalemusser/stratatopics/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	assignment := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Topic{
		AssignmentID: assignment,
		Identifier:   " T1 ",
		Name:         "Sorting Algorithms",
		Category:     "algorithms",
		Capacity:     2,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID.IsZero() {
		t.Error("expected ID to be set")
	}
	if created.Identifier != "T1" {
		t.Errorf("identifier = %q, want trimmed T1", created.Identifier)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Sorting Algorithms" || got.NameCI != "sorting algorithms" {
		t.Errorf("unexpected name fields: %q / %q", got.Name, got.NameCI)
	}
	if got.Capacity != 2 || got.Confirmed != 0 || got.NextSeq != 0 {
		t.Errorf("unexpected counters: cap=%d confirmed=%d seq=%d", got.Capacity, got.Confirmed, got.NextSeq)
	}
}

func TestStore_Create_DuplicateIdentifier(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	assignment := primitive.NewObjectID()
	topic := models.Topic{AssignmentID: assignment, Identifier: "T1", Name: "One", Capacity: 1}
	if _, err := store.Create(ctx, topic); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, topic)
	if !errors.Is(err, topicstore.ErrDuplicateIdentifier) {
		t.Errorf("expected ErrDuplicateIdentifier, got %v", err)
	}

	// same identifier in another assignment is fine
	topic.AssignmentID = primitive.NewObjectID()
	if _, err := store.Create(ctx, topic); err != nil {
		t.Errorf("Create in other assignment failed: %v", err)
	}
}

func TestStore_Create_NegativeCapacity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.Topic{AssignmentID: primitive.NewObjectID(), Identifier: "T", Name: "T", Capacity: -1})
	if !errors.Is(err, topicstore.ErrInvalidCapacity) {
		t.Errorf("expected ErrInvalidCapacity, got %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestStore_ListByAssignment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	assignment := primitive.NewObjectID()
	fixtures.CreateTopic(ctx, assignment, "T2", 1)
	fixtures.CreateTopic(ctx, assignment, "T1", 1)
	fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T0", 1)

	topics, err := store.ListByAssignment(ctx, assignment)
	if err != nil {
		t.Fatalf("ListByAssignment failed: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].Identifier != "T1" || topics[1].Identifier != "T2" {
		t.Errorf("unexpected order: %s, %s", topics[0].Identifier, topics[1].Identifier)
	}

	ids, err := store.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 ids, got %d", len(ids))
	}
}

func TestStore_UpdateInfo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T1", 1)
	err := store.UpdateInfo(ctx, topic.ID, topicstore.Info{Name: "Graphs", Category: "cs", Link: "https://example.com"})
	if err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}
	got, _ := store.GetByID(ctx, topic.ID)
	if got.Name != "Graphs" || got.NameCI != "graphs" || got.Link != "https://example.com" {
		t.Errorf("unexpected topic after update: %+v", got)
	}

	if err := store.UpdateInfo(ctx, primitive.NewObjectID(), topicstore.Info{Name: "x"}); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestStore_Claim(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T1", 2)

	want := []struct {
		seq       int64
		confirmed bool
	}{{1, true}, {2, true}, {3, false}, {4, false}}

	for i, w := range want {
		c, err := store.Claim(ctx, topic.ID)
		if err != nil {
			t.Fatalf("Claim %d failed: %v", i, err)
		}
		if c.Sequence != w.seq || c.Confirmed != w.confirmed {
			t.Errorf("Claim %d = seq %d confirmed %v, want seq %d confirmed %v", i, c.Sequence, c.Confirmed, w.seq, w.confirmed)
		}
	}

	got, _ := store.GetByID(ctx, topic.ID)
	if got.Confirmed != 2 || got.NextSeq != 4 {
		t.Errorf("counters = confirmed %d seq %d, want 2 and 4", got.Confirmed, got.NextSeq)
	}
	if got.Version != 4 {
		t.Errorf("version = %d, want 4", got.Version)
	}

	if _, err := store.Claim(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments for missing topic, got %v", err)
	}
}

func TestStore_Claim_WaitlistOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T0", 0)
	c, err := store.Claim(ctx, topic.ID)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if c.Confirmed {
		t.Error("capacity 0 topic must never confirm")
	}
}

func TestStore_TakeSlotAndRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T1", 1)

	ok, err := store.TakeSlot(ctx, topic.ID)
	if err != nil || !ok {
		t.Fatalf("TakeSlot = %v, %v; want true", ok, err)
	}
	ok, err = store.TakeSlot(ctx, topic.ID)
	if err != nil || ok {
		t.Fatalf("TakeSlot on full topic = %v, %v; want false", ok, err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Release(ctx, topic.ID); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}
	got, _ := store.GetByID(ctx, topic.ID)
	if got.Confirmed != 0 {
		t.Errorf("confirmed = %d, want 0 (never negative)", got.Confirmed)
	}
}

func TestStore_SetCapacity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T1", 3)
	store.TakeSlot(ctx, topic.ID)
	store.TakeSlot(ctx, topic.ID)

	if err := store.SetCapacity(ctx, topic.ID, 1); !errors.Is(err, topicstore.ErrBelowConfirmed) {
		t.Errorf("expected ErrBelowConfirmed, got %v", err)
	}
	if err := store.SetCapacity(ctx, topic.ID, 2); err != nil {
		t.Errorf("SetCapacity to confirmed count failed: %v", err)
	}
	if err := store.SetCapacity(ctx, topic.ID, -1); !errors.Is(err, topicstore.ErrInvalidCapacity) {
		t.Errorf("expected ErrInvalidCapacity, got %v", err)
	}
	if err := store.SetCapacity(ctx, primitive.NewObjectID(), 5); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestStore_SetConfirmed_VersionGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T1", 3)
	store.TakeSlot(ctx, topic.ID) // version 1

	ok, err := store.SetConfirmed(ctx, topic.ID, 0, 0)
	if err != nil || ok {
		t.Fatalf("stale version write = %v, %v; want false", ok, err)
	}
	ok, err = store.SetConfirmed(ctx, topic.ID, 1, 0)
	if err != nil || !ok {
		t.Fatalf("current version write = %v, %v; want true", ok, err)
	}
	got, _ := store.GetByID(ctx, topic.ID)
	if got.Confirmed != 0 {
		t.Errorf("confirmed = %d, want 0", got.Confirmed)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	topic := fixtures.CreateTopic(ctx, primitive.NewObjectID(), "T1", 1)
	n, err := store.Delete(ctx, topic.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if err := store.Touch(ctx, topic.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("Touch on deleted topic: expected ErrNoDocuments, got %v", err)
	}
}
