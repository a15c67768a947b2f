package comment

import (
	"context"
	"testing"
	"time"
)

var t0 = time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)

func TestApproveKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	c := &Comment{PhotoID: "p1", EventID: "e1", Content: "Harika!", CreatedAt: t0}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusPending {
		t.Errorf("default status = %q, want pending", c.Status)
	}

	if got, _ := repo.ListApprovedSince(ctx, "e1", t0.Add(-time.Minute), 0); len(got) != 0 {
		t.Fatal("pending comment visible in delta")
	}

	n, err := repo.Approve(ctx, []string{c.ID, c.ID, "missing"})
	if err != nil || n != 1 {
		t.Fatalf("Approve() = %d, %v", n, err)
	}

	got, _ := repo.GetMany(ctx, []string{c.ID})
	if len(got) != 1 || !got[0].CreatedAt.Equal(t0) {
		t.Errorf("approval changed created_at: %+v", got)
	}

	// Comment deltas key on created_at: approving an old comment does not resurface it.
	if got, _ := repo.ListApprovedSince(ctx, "e1", t0.Add(time.Second), 0); len(got) != 0 {
		t.Errorf("approved comment older than watermark returned: %v", got)
	}
	if got, _ := repo.ListApprovedSince(ctx, "e1", t0.Add(-time.Second), 0); len(got) != 1 {
		t.Errorf("ListApprovedSince() = %d, want 1", len(got))
	}
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	seed := []*Comment{
		{PhotoID: "p1", EventID: "e1", Status: StatusApproved, CreatedAt: t0.Add(2 * time.Second)},
		{PhotoID: "p1", EventID: "e1", Status: StatusApproved, CreatedAt: t0.Add(1 * time.Second)},
		{PhotoID: "p1", EventID: "e1", Status: StatusPending, CreatedAt: t0.Add(3 * time.Second)},
		{PhotoID: "p2", EventID: "e2", Status: StatusPending, CreatedAt: t0},
	}
	for _, c := range seed {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	approved, _ := repo.ListByPhoto(ctx, "p1", true)
	if len(approved) != 2 || approved[0].ID != seed[1].ID {
		t.Errorf("ListByPhoto(approved) = %v", approved)
	}
	if all, _ := repo.ListByPhoto(ctx, "p1", false); len(all) != 3 {
		t.Errorf("ListByPhoto(all) = %d", len(all))
	}

	pending, _ := repo.ListPending(ctx, "e1")
	if len(pending) != 1 || pending[0].ID != seed[2].ID {
		t.Errorf("ListPending() = %v", pending)
	}

	since, _ := repo.ListApprovedSince(ctx, "e1", t0, 1)
	if len(since) != 1 || since[0].ID != seed[0].ID {
		t.Errorf("ListApprovedSince(limit 1) = %v, want newest", since)
	}

	if n := repo.DeleteByPhotos(ctx, []string{"p2"}); n != 1 {
		t.Errorf("DeleteByPhotos() = %d", n)
	}
	if n, _ := repo.DeleteByEvent(ctx, "e1"); n != 3 {
		t.Errorf("DeleteByEvent() = %d", n)
	}
	if n, _ := repo.Delete(ctx, []string{seed[0].ID}); n != 0 {
		t.Errorf("Delete() after cascade = %d", n)
	}
}
