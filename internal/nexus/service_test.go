package nexus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexus-go/internal/database"
	"nexus-go/internal/ledger"
	"nexus-go/internal/nexus"
	"nexus-go/internal/objectstore"
	"nexus-go/internal/testutil"
)

func TestService_AddContact(t *testing.T) {
	t.Run("stores and anchors a contact", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}
		if c.ID == "" {
			t.Error("AddContact() returned contact with empty ID")
		}
		if c.Priority != nexus.PriorityMedium {
			t.Errorf("Priority = %q, want %q", c.Priority, nexus.PriorityMedium)
		}

		res, err := f.Service.VerifyDataIntegrity(ctx, "alice", "contact", c.ID)
		if err != nil {
			t.Fatalf("VerifyDataIntegrity() error = %v", err)
		}
		if !res.IsValid {
			t.Errorf("IsValid = false, want true (current=%s stored=%s)",
				res.CurrentDigest, res.StoredDigest)
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		f := testutil.NewFixture()

		_, err := f.Service.AddContact(context.Background(), "alice", nexus.ContactFields{Name: "   "}, nil)
		if !errors.Is(err, nexus.ErrValidation) {
			t.Errorf("AddContact() error = %v, want ErrValidation", err)
		}
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		f := testutil.NewFixture()

		_, err := f.Service.AddContact(context.Background(), "", nexus.ContactFields{Name: "Bob"}, nil)
		if !errors.Is(err, nexus.ErrValidation) {
			t.Errorf("AddContact() error = %v, want ErrValidation", err)
		}
	})

	t.Run("normalizes tags", func(t *testing.T) {
		f := testutil.NewFixture()

		c, err := f.Service.AddContact(context.Background(), "alice", nexus.ContactFields{
			Name: "Bob",
			Tags: []string{" Web3 ", "ai", "AI", "", "ai "},
		}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		want := []string{"ai", "web3"}
		if len(c.Tags) != len(want) {
			t.Fatalf("Tags = %v, want %v", c.Tags, want)
		}
		for i := range want {
			if c.Tags[i] != want[i] {
				t.Errorf("Tags[%d] = %q, want %q", i, c.Tags[i], want[i])
			}
		}
	})

	t.Run("uploads and attaches a photo", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()
		photo := []byte("jpeg bytes")

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, photo)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}
		if c.Photo == nil {
			t.Fatal("Photo = nil, want a reference")
		}
		if c.Photo.ContentHash != testutil.SHA256Hex(photo) {
			t.Errorf("ContentHash = %q, want %q", c.Photo.ContentHash, testutil.SHA256Hex(photo))
		}

		got, err := f.Objects.Retrieve(ctx, c.Photo.Locator)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if string(got) != string(photo) {
			t.Errorf("Retrieve() = %q, want %q", got, photo)
		}
	})

	t.Run("upload failure leaves contact stored without photo fields", func(t *testing.T) {
		store := database.NewMemoryStore()
		objects := objectstore.NewMemoryStore(1024) // min size larger than the payload
		ldg := ledger.NewMemoryLedger()
		svc := nexus.NewService(store, objects, ldg, nil, nil,
			nexus.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator(),
			nexus.RetryPolicy{Attempts: 3, Delay: 0})
		ctx := context.Background()

		smallPhoto := make([]byte, 37)
		c, err := svc.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, smallPhoto)
		if !errors.Is(err, nexus.ErrUploadFailed) {
			t.Fatalf("AddContact() error = %v, want ErrUploadFailed", err)
		}
		if c == nil {
			t.Fatal("AddContact() contact = nil, want the stored contact")
		}

		stored, err := store.GetContact(ctx, "alice", c.ID)
		if err != nil {
			t.Fatalf("GetContact() error = %v", err)
		}
		if stored == nil {
			t.Fatal("contact was not stored")
		}
		if stored.Photo != nil {
			t.Errorf("Photo = %+v, want nil after failed upload", stored.Photo)
		}
	})

	t.Run("ledger failure returns contact with ErrUnanchored", func(t *testing.T) {
		f := testutil.NewFixture()
		f.Ledger.Close()

		c, err := f.Service.AddContact(context.Background(), "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if !errors.Is(err, nexus.ErrUnanchored) {
			t.Fatalf("AddContact() error = %v, want ErrUnanchored", err)
		}
		if c == nil {
			t.Fatal("AddContact() contact = nil, want the stored contact")
		}
	})
}

func TestService_AddPhotoToContact(t *testing.T) {
	t.Run("attaches photo and re-anchors the contact", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		before := f.Ledger.Len()
		f.Clock.Advance(time.Minute)

		updated, err := f.Service.AddPhotoToContact(ctx, "alice", c.ID, []byte("photo"))
		if err != nil {
			t.Fatalf("AddPhotoToContact() error = %v", err)
		}
		if updated.Photo == nil {
			t.Fatal("Photo = nil after attach")
		}

		// One image record plus one fresh contact anchor.
		if got := f.Ledger.Len() - before; got != 2 {
			t.Errorf("ledger grew by %d records, want 2", got)
		}

		// The re-anchored digest must cover the photo fields.
		res, err := f.Service.VerifyDataIntegrity(ctx, "alice", "contact", c.ID)
		if err != nil {
			t.Fatalf("VerifyDataIntegrity() error = %v", err)
		}
		if !res.IsValid {
			t.Error("IsValid = false after photo attach, want true")
		}
	})

	t.Run("unknown contact is ErrNotFound", func(t *testing.T) {
		f := testutil.NewFixture()

		_, err := f.Service.AddPhotoToContact(context.Background(), "alice", "missing", []byte("photo"))
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("AddPhotoToContact() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("empty payload is ErrUploadFailed", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		_, err = f.Service.AddPhotoToContact(ctx, "alice", c.ID, nil)
		if !errors.Is(err, nexus.ErrUploadFailed) {
			t.Errorf("AddPhotoToContact() error = %v, want ErrUploadFailed", err)
		}
	})
}

func TestService_SearchContacts(t *testing.T) {
	seed := func(t *testing.T, f *testutil.Fixture) {
		t.Helper()
		ctx := context.Background()
		for _, fields := range []nexus.ContactFields{
			{Name: "Alice Chen", Company: "Protocol Labs", Tags: []string{"ipfs"}},
			{Name: "Bob Marsh", Company: "Acme", Goal: "hiring"},
			{Name: "Carol Díaz", Position: "Protocol Engineer"},
		} {
			if _, err := f.Service.AddContact(ctx, "owner-1", fields, nil); err != nil {
				t.Fatalf("AddContact() error = %v", err)
			}
		}
	}

	t.Run("matches substrings across fields", func(t *testing.T) {
		f := testutil.NewFixture()
		seed(t, f)

		got, err := f.Service.SearchContacts(context.Background(), "owner-1", "protocol")
		if err != nil {
			t.Fatalf("SearchContacts() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("SearchContacts() returned %d contacts, want 2", len(got))
		}
	})

	t.Run("matches tags", func(t *testing.T) {
		f := testutil.NewFixture()
		seed(t, f)

		got, err := f.Service.SearchContacts(context.Background(), "owner-1", "ipfs")
		if err != nil {
			t.Fatalf("SearchContacts() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("SearchContacts() returned %d contacts, want 1", len(got))
		}
		if got[0].Name != "Alice Chen" {
			t.Errorf("Name = %q, want %q", got[0].Name, "Alice Chen")
		}
	})

	t.Run("empty query returns the full list", func(t *testing.T) {
		f := testutil.NewFixture()
		seed(t, f)

		got, err := f.Service.SearchContacts(context.Background(), "owner-1", "   ")
		if err != nil {
			t.Fatalf("SearchContacts() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("SearchContacts() returned %d contacts, want 3", len(got))
		}
	})

	t.Run("never crosses owner boundaries", func(t *testing.T) {
		f := testutil.NewFixture()
		seed(t, f)
		ctx := context.Background()

		if _, err := f.Service.AddContact(ctx, "owner-2", nexus.ContactFields{
			Name: "Protocol Pete",
		}, nil); err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		got, err := f.Service.SearchContacts(ctx, "owner-2", "protocol")
		if err != nil {
			t.Fatalf("SearchContacts() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("SearchContacts() returned %d contacts, want 1", len(got))
		}
		if got[0].Owner != "owner-2" {
			t.Errorf("Owner = %q, want owner-2", got[0].Owner)
		}
	})
}

func TestService_DeleteContact(t *testing.T) {
	t.Run("removes the record and anchors a tombstone", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		before := f.Ledger.Len()
		if err := f.Service.DeleteContact(ctx, "alice", c.ID); err != nil {
			t.Fatalf("DeleteContact() error = %v", err)
		}
		if got := f.Ledger.Len() - before; got != 1 {
			t.Errorf("ledger grew by %d records, want 1 tombstone", got)
		}

		if _, err := f.Service.GetContact(ctx, "alice", c.ID); !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("GetContact() error = %v, want ErrNotFound", err)
		}

		// Verification of a deleted id behaves as if it never existed.
		_, err = f.Service.VerifyDataIntegrity(ctx, "alice", "contact", c.ID)
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("VerifyDataIntegrity() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown id is ErrNotFound", func(t *testing.T) {
		f := testutil.NewFixture()

		err := f.Service.DeleteContact(context.Background(), "alice", "missing")
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("DeleteContact() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("other owner's contact is untouchable", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		if err := f.Service.DeleteContact(ctx, "mallory", c.ID); !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("DeleteContact() error = %v, want ErrNotFound", err)
		}
		if _, err := f.Service.GetContact(ctx, "alice", c.ID); err != nil {
			t.Errorf("GetContact() error = %v, contact should survive", err)
		}
	})
}

func TestService_VerifyDataIntegrity(t *testing.T) {
	t.Run("detects a tampered record", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob", Company: "Acme"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		// Mutate the relational row behind the service's back.
		tampered := *c
		tampered.Company = "Evil Corp"
		if err := f.Store.InsertContact(ctx, &tampered); err != nil {
			t.Fatalf("InsertContact() error = %v", err)
		}

		res, err := f.Service.VerifyDataIntegrity(ctx, "alice", "contact", c.ID)
		if !errors.Is(err, nexus.ErrIntegrityMismatch) {
			t.Fatalf("VerifyDataIntegrity() error = %v, want ErrIntegrityMismatch", err)
		}
		if res == nil {
			t.Fatal("result = nil, want digests alongside the mismatch error")
		}
		if res.IsValid {
			t.Error("IsValid = true, want false")
		}
		if res.CurrentDigest == res.StoredDigest {
			t.Error("digests are equal on a reported mismatch")
		}
	})

	t.Run("unindexed anchor is ErrAnchorPending, then verifiable", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		f.Ledger.SetIndexLag(5)
		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		// Three attempts consume three of the five lag queries.
		_, err = f.Service.VerifyDataIntegrity(ctx, "alice", "contact", c.ID)
		if !errors.Is(err, nexus.ErrAnchorPending) {
			t.Fatalf("VerifyDataIntegrity() error = %v, want ErrAnchorPending", err)
		}

		// The remaining lag drains within the next retry cycle.
		res, err := f.Service.VerifyDataIntegrity(ctx, "alice", "contact", c.ID)
		if err != nil {
			t.Fatalf("second VerifyDataIntegrity() error = %v", err)
		}
		if !res.IsValid {
			t.Error("IsValid = false once the anchor is indexed, want true")
		}
	})

	t.Run("unknown kind is ErrValidation", func(t *testing.T) {
		f := testutil.NewFixture()

		_, err := f.Service.VerifyDataIntegrity(context.Background(), "alice", "tombstone", "x")
		if !errors.Is(err, nexus.ErrValidation) {
			t.Errorf("VerifyDataIntegrity() error = %v, want ErrValidation", err)
		}
	})

	t.Run("missing record is ErrNotFound before any ledger work", func(t *testing.T) {
		f := testutil.NewFixture()
		f.Ledger.Close() // a dead ledger must not mask the not-found

		_, err := f.Service.VerifyDataIntegrity(context.Background(), "alice", "contact", "missing")
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("VerifyDataIntegrity() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_AddBaseBuilder(t *testing.T) {
	t.Run("stores and anchors an application", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		a, err := f.Service.AddBaseBuilder(ctx, "alice", nexus.BuilderFields{
			Name:    "Alice Chen",
			Project: "nexus",
		})
		if err != nil {
			t.Fatalf("AddBaseBuilder() error = %v", err)
		}

		res, err := f.Service.VerifyDataIntegrity(ctx, "alice", "application", a.ID)
		if err != nil {
			t.Fatalf("VerifyDataIntegrity() error = %v", err)
		}
		if !res.IsValid {
			t.Error("IsValid = false, want true")
		}
	})

	t.Run("second application is ErrAlreadyExists", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		first, err := f.Service.AddBaseBuilder(ctx, "alice", nexus.BuilderFields{Name: "Alice"})
		if err != nil {
			t.Fatalf("AddBaseBuilder() error = %v", err)
		}

		_, err = f.Service.AddBaseBuilder(ctx, "alice", nexus.BuilderFields{Name: "Alice Again"})
		if !errors.Is(err, nexus.ErrAlreadyExists) {
			t.Fatalf("AddBaseBuilder() error = %v, want ErrAlreadyExists", err)
		}

		got, err := f.Service.GetBaseBuilderByOwner(ctx, "alice")
		if err != nil {
			t.Fatalf("GetBaseBuilderByOwner() error = %v", err)
		}
		if got.ID != first.ID || got.Name != "Alice" {
			t.Errorf("application = %q/%q, first submission should be untouched", got.ID, got.Name)
		}
	})

	t.Run("no application is ErrNotFound", func(t *testing.T) {
		f := testutil.NewFixture()

		_, err := f.Service.GetBaseBuilderByOwner(context.Background(), "nobody")
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("GetBaseBuilderByOwner() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_PendingPhoto(t *testing.T) {
	t.Run("request then complete attaches the photo", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		if err := f.Service.RequestPhotoUpload(ctx, "alice", c.ID, time.Minute); err != nil {
			t.Fatalf("RequestPhotoUpload() error = %v", err)
		}

		updated, err := f.Service.CompletePendingPhoto(ctx, "alice", []byte("photo"))
		if err != nil {
			t.Fatalf("CompletePendingPhoto() error = %v", err)
		}
		if updated.ID != c.ID {
			t.Errorf("contact = %q, want %q", updated.ID, c.ID)
		}
		if updated.Photo == nil {
			t.Error("Photo = nil after completing the pending upload")
		}

		// The action is consumed.
		_, err = f.Service.CompletePendingPhoto(ctx, "alice", []byte("photo"))
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("second CompletePendingPhoto() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("expired request is ErrNotFound", func(t *testing.T) {
		f := testutil.NewFixture()
		ctx := context.Background()

		c, err := f.Service.AddContact(ctx, "alice", nexus.ContactFields{Name: "Bob"}, nil)
		if err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}

		if err := f.Service.RequestPhotoUpload(ctx, "alice", c.ID, time.Minute); err != nil {
			t.Fatalf("RequestPhotoUpload() error = %v", err)
		}
		f.Clock.Advance(2 * time.Minute)

		_, err = f.Service.CompletePendingPhoto(ctx, "alice", []byte("photo"))
		if !errors.Is(err, nexus.ErrNotFound) {
			t.Errorf("CompletePendingPhoto() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("nil session store is ErrValidation", func(t *testing.T) {
		svc := nexus.NewService(database.NewMemoryStore(), objectstore.NewMemoryStore(0),
			ledger.NewMemoryLedger(), nil, nil,
			nexus.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator(),
			nexus.RetryPolicy{Attempts: 3, Delay: 0})

		err := svc.RequestPhotoUpload(context.Background(), "alice", "x", time.Minute)
		if !errors.Is(err, nexus.ErrValidation) {
			t.Errorf("RequestPhotoUpload() error = %v, want ErrValidation", err)
		}
	})
}

func TestService_GetStats(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	add := func(fields nexus.ContactFields) {
		t.Helper()
		if _, err := f.Service.AddContact(ctx, "alice", fields, nil); err != nil {
			t.Fatalf("AddContact() error = %v", err)
		}
	}
	add(nexus.ContactFields{Name: "A", Priority: "high", Email: "a@example.com"})
	add(nexus.ContactFields{Name: "B", Priority: "high", LinkedIn: "in/b"})
	add(nexus.ContactFields{Name: "C", GitHub: "c"})

	stats, err := f.Service.GetStats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.PerPriority[nexus.PriorityHigh] != 2 {
		t.Errorf("PerPriority[high] = %d, want 2", stats.PerPriority[nexus.PriorityHigh])
	}
	if stats.WithEmail != 1 || stats.WithLinkedIn != 1 || stats.WithGitHub != 1 {
		t.Errorf("field counts = %d/%d/%d, want 1/1/1",
			stats.WithEmail, stats.WithLinkedIn, stats.WithGitHub)
	}
	if stats.CreatedLast7d != 3 {
		t.Errorf("CreatedLast7d = %d, want 3", stats.CreatedLast7d)
	}

	// Recency windows follow the injected clock: ten days later the
	// contacts have aged out of the 7d window but not the 30d one.
	f.Clock.Advance(10 * 24 * time.Hour)
	stats, err = f.Service.GetStats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetStats() after advance error = %v", err)
	}
	if stats.CreatedLast7d != 0 {
		t.Errorf("CreatedLast7d after advance = %d, want 0", stats.CreatedLast7d)
	}
	if stats.CreatedLast30d != 3 {
		t.Errorf("CreatedLast30d after advance = %d, want 3", stats.CreatedLast30d)
	}
}

func TestService_GetSystemStatus(t *testing.T) {
	t.Run("all backends healthy", func(t *testing.T) {
		f := testutil.NewFixture()

		st := f.Service.GetSystemStatus(context.Background())
		if st.Overall != "ok" {
			t.Errorf("Overall = %q, want ok", st.Overall)
		}
		if !st.Database || !st.ObjectStore || !st.Ledger {
			t.Errorf("backend flags = %v/%v/%v, want all true",
				st.Database, st.ObjectStore, st.Ledger)
		}
	})

	t.Run("dead ledger degrades the system", func(t *testing.T) {
		f := testutil.NewFixture()
		f.Ledger.Close()

		st := f.Service.GetSystemStatus(context.Background())
		if st.Overall != "degraded" {
			t.Errorf("Overall = %q, want degraded", st.Overall)
		}
		if st.Ledger {
			t.Error("Ledger = true, want false")
		}
	})
}
