package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(NotFound("book %s not found", "b1")); got != KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", got)
	}
	if got := KindOf(InvalidInput("one or more authors not found")); got != KindInvalidInput {
		t.Fatalf("expected BAD_USER_INPUT, got %s", got)
	}
	if got := KindOf(BadRequest("already borrowed")); got != KindBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %s", got)
	}
	if got := KindOf(errors.New("connection reset")); got != KindInternal {
		t.Fatalf("expected INTERNAL for plain error, got %s", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("borrow book: %w", NotFound("user u1 not found"))
	if !IsNotFound(err) {
		t.Fatalf("expected wrapped error to stay NOT_FOUND, got %s", KindOf(err))
	}
}

func TestInternalCarriesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause, "list books")
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if err.Error() != "list books: pq: connection refused" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
