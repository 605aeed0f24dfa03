package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestDeriveVersionIDIsDeterministic(t *testing.T) {
	a := DeriveVersionID("etag-1", 1024, 1700000000000)
	b := DeriveVersionID("etag-1", 1024, 1700000000000)
	if a != b {
		t.Fatalf("DeriveVersionID: want equal ids for identical inputs, got %s vs %s", a, b)
	}
}

func TestDeriveVersionIDChangesWithAnyInput(t *testing.T) {
	base := DeriveVersionID("etag-1", 1024, 1700000000000)
	cases := []uuid.UUID{
		DeriveVersionID("etag-2", 1024, 1700000000000),
		DeriveVersionID("etag-1", 2048, 1700000000000),
		DeriveVersionID("etag-1", 1024, 1700000000001),
	}
	for i, c := range cases {
		if c == base {
			t.Fatalf("case %d: expected a different id when an input changes", i)
		}
	}
}

func TestDeriveVersionIDProducesValidUUID(t *testing.T) {
	id := DeriveVersionID("etag", 1, 1)
	if id.Version() != 5 {
		t.Fatalf("expected RFC 4122 version 5 bits set, got version %d", id.Version())
	}
}

func TestSegmentIDIsStablePerVersionAndIndex(t *testing.T) {
	v := uuid.New()
	if SegmentID(v, 0) != SegmentID(v, 0) {
		t.Fatalf("SegmentID should be pure")
	}
	if SegmentID(v, 0) == SegmentID(v, 1) {
		t.Fatalf("SegmentID should differ across indices")
	}
}

func TestEmbeddingIDIsBoundToItsSegment(t *testing.T) {
	segID := "some-segment-id"
	if EmbeddingID(segID) != segID+"_emb" {
		t.Fatalf("EmbeddingID: want=%q got=%q", segID+"_emb", EmbeddingID(segID))
	}
}

func TestIdempotencyKeyIncludesAttempt(t *testing.T) {
	a, v := uuid.New(), uuid.New()
	k0 := IdempotencyKey(a, v, 0)
	k1 := IdempotencyKey(a, v, 1)
	if k0 == k1 {
		t.Fatalf("IdempotencyKey should change with attempt")
	}
}
