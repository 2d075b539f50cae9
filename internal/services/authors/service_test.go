package authors

import (
	"context"
	"testing"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/storage/memory"
)

func TestService_AuthorLifecycle(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Octavia Butler")
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	if created.Name != "Octavia Butler" {
		t.Fatalf("unexpected name, got %q", created.Name)
	}

	// Names carry no uniqueness constraint.
	if _, err := svc.Create(ctx, "Octavia Butler"); err != nil {
		t.Fatalf("duplicate name must be allowed: %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list authors: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(all))
	}

	name := "O. E. Butler"
	updated, err := svc.Update(ctx, created.ID, &name)
	if err != nil {
		t.Fatalf("update author: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("name not updated: %q", updated.Name)
	}

	// Omitted name leaves the record unchanged.
	same, err := svc.Update(ctx, created.ID, nil)
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if same.Name != name {
		t.Fatalf("no-op update changed name: %q", same.Name)
	}

	if _, err := svc.Update(ctx, "missing", &name); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := svc.Get(ctx, "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestService_CreateAcceptsAnyName(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	// There is no shape constraint on names; the empty string is a valid one.
	for _, name := range []string{"", "   "} {
		created, err := svc.Create(ctx, name)
		if err != nil {
			t.Fatalf("create author with name %q: %v", name, err)
		}
		if created.Name != name {
			t.Fatalf("name must be stored as given: got %q, want %q", created.Name, name)
		}
	}

	empty := ""
	a, err := svc.Create(ctx, "named")
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	updated, err := svc.Update(ctx, a.ID, &empty)
	if err != nil {
		t.Fatalf("update to empty name: %v", err)
	}
	if updated.Name != "" {
		t.Fatalf("expected empty name after update, got %q", updated.Name)
	}
}

func TestService_GetResolvesBooks(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, "N. K. Jemisin")
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	b, err := store.CreateBook(ctx, book.Book{Title: "The Fifth Season"}, []string{a.ID})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}

	resolved, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get author: %v", err)
	}
	if len(resolved.Books) != 1 || resolved.Books[0].ID != b.ID {
		t.Fatalf("expected resolved book list [%s], got %#v", b.ID, resolved.Books)
	}
}

func TestService_DeleteGuardedByLinkedBooks(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, "guarded")
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	b, err := store.CreateBook(ctx, book.Book{Title: "linked"}, []string{a.ID})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}

	if _, err := svc.Delete(ctx, a.ID); apperr.KindOf(err) != apperr.KindBadRequest {
		t.Fatalf("expected BAD_REQUEST while book references author, got %v", err)
	}
	if _, err := svc.Get(ctx, a.ID); err != nil {
		t.Fatalf("author must survive rejected delete: %v", err)
	}

	if _, err := store.DeleteBook(ctx, b.ID); err != nil {
		t.Fatalf("delete book: %v", err)
	}

	deleted, err := svc.Delete(ctx, a.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed once unlinked, got %v %v", deleted, err)
	}

	// Absent author is a boolean false, not an error.
	deleted, err = svc.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete absent author: %v", err)
	}
	if deleted {
		t.Fatalf("expected false for already-deleted author")
	}
}
