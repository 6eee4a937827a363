package money

import "testing"

func TestRound2ChainedProducts(t *testing.T) {
	// 3 * 50.00 and 2 * 30.00 must land exactly on cents even though the
	// intermediate binary floats do not.
	if got := Mul2(3, 50.00); got != 150.00 {
		t.Fatalf("expected 150.00, got %v", got)
	}
	if got := Sum2(Mul2(3, 50.00), Mul2(2, 30.00)); got != 210.00 {
		t.Fatalf("expected 210.00, got %v", got)
	}
}

func TestRound2Idempotent(t *testing.T) {
	values := []float64{0, 0.005, 1.005, 2.675, 210.0, -1.005, 19.999999999, 1234567.891}
	for _, v := range values {
		once := Round2(v)
		if twice := Round2(once); twice != once {
			t.Fatalf("Round2 not idempotent for %v: %v != %v", v, twice, once)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	if got := Round2(2.675); got != 2.68 {
		t.Fatalf("expected 2.68, got %v", got)
	}
	if got := Round2(0.125); got != 0.13 {
		t.Fatalf("expected 0.13, got %v", got)
	}
}

func TestRoundPlaces(t *testing.T) {
	if got := Round(1.23456, 3); got != 1.235 {
		t.Fatalf("expected 1.235, got %v", got)
	}
	if got := Round(1.23456, 0); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}
