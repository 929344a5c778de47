package tokens

import "testing"

func TestCounter_Count(t *testing.T) {
	c := NewCounter()

	n, err := c.Count("What is the refund policy?")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n == 0 {
		t.Error("Count() = 0, want > 0")
	}

	empty, err := c.Count("")
	if err != nil {
		t.Fatalf("Count(empty) error = %v", err)
	}
	if empty != 0 {
		t.Errorf("Count(empty) = %d, want 0", empty)
	}
}

func TestCounter_Reuse(t *testing.T) {
	c := NewCounter()

	first, err := c.Count("hello world")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	second, err := c.Count("hello world")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if first != second {
		t.Errorf("repeated counts differ: %d vs %d", first, second)
	}
}
