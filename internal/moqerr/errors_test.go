package moqerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfUnwraps(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")
	err := fmt.Errorf("context: %w", Wrap(WrongSize, base))

	if got := CodeOf(err); got != WrongSize {
		t.Fatalf("CodeOf = %v, want %v", got, WrongSize)
	}
}

func TestCodeOfForeignError(t *testing.T) {
	t.Parallel()
	if got := CodeOf(errors.New("not ours")); got != Transport {
		t.Fatalf("CodeOf = %v, want %v", got, Transport)
	}
}

func TestCodeOfNil(t *testing.T) {
	t.Parallel()
	if got := CodeOf(nil); got != Cancel {
		t.Fatalf("CodeOf(nil) = %v, want %v", got, Cancel)
	}
}

func TestAppCode(t *testing.T) {
	t.Parallel()
	c := App(5)
	n, ok := c.IsApp()
	if !ok || n != 5 {
		t.Fatalf("IsApp() = (%d, %v), want (5, true)", n, ok)
	}
	if ProtocolViolation.String() == c.String() {
		t.Fatalf("app code should not collide with a named code's string form")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()
	base := errors.New("root cause")
	e := Wrap(Decode, base)
	if !errors.Is(e, base) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}
