package tracer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

func TestRayState_SwapAndReset(t *testing.T) {
	dev := newTestDevice(t)
	rs, err := NewRayState(dev, 12)
	if err != nil {
		t.Fatalf("NewRayState: %v", err)
	}
	defer rs.Release()

	if rs.Len() != 12 {
		t.Fatalf("Len = %d, want 12", rs.Len())
	}
	src, dst := rs.Source(), rs.Destination()
	if src == dst {
		t.Fatal("source and destination alias the same buffer")
	}
	if rs.Parity() != 0 {
		t.Fatalf("initial parity = %d, want 0", rs.Parity())
	}

	rs.Swap()
	if rs.Source() != dst || rs.Destination() != src || rs.Parity() != 1 {
		t.Fatal("Swap did not exchange the roles")
	}
	rs.Swap()
	if rs.Source() != src || rs.Parity() != 0 {
		t.Fatal("double Swap did not restore the roles")
	}

	rs.Swap()
	rs.Reset()
	if rs.Source() != src || rs.Parity() != 0 {
		t.Fatal("Reset did not restore parity 0")
	}
}

func TestNewRayState_RejectsAliasedOrMismatchedBuffers(t *testing.T) {
	dev := newTestDevice(t)
	a, _ := dev.NewRayBuffer("a", 4)
	b, _ := dev.NewRayBuffer("b", 5)

	if _, err := newRayState(a, a); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("aliased buffers err = %v, want ErrConfiguration", err)
	}
	if _, err := newRayState(a, b); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("mismatched buffers err = %v, want ErrConfiguration", err)
	}
}

func TestNewRayState_ResourceExhausted(t *testing.T) {
	dev := newTestDevice(t, deviceLimit(1024))
	if _, err := NewRayState(dev, 1000); !errors.Is(err, common.ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
}
