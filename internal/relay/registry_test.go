package relay

import (
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	p := &fakePeer{}

	if err := reg.Register(p, ClientRecord{ID: "a", RemoteAddr: "x"}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	err := reg.Register(p, ClientRecord{ID: "b", RemoteAddr: "y"})
	if !errors.Is(err, ErrDuplicateConnection) {
		t.Fatalf("expected ErrDuplicateConnection, got %v", err)
	}

	rec, ok := reg.Lookup(p)
	if !ok || rec.ID != "a" {
		t.Errorf("original record must be kept, got %+v ok=%v", rec, ok)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	a, b := &fakePeer{}, &fakePeer{}
	_ = reg.Register(a, ClientRecord{ID: "a"})
	_ = reg.Register(b, ClientRecord{ID: "b"})

	if rec, ok := reg.Unregister(a); !ok || rec.ID != "a" {
		t.Errorf("Unregister of present peer = %+v, %v", rec, ok)
	}
	if _, ok := reg.Unregister(a); ok {
		t.Error("Unregister of absent peer reported success")
	}
	if _, ok := reg.LookupByID("a"); ok {
		t.Error("unregistered peer still reachable by id")
	}
	if p, ok := reg.LookupByID("b"); !ok || p != b {
		t.Error("remaining peer not reachable by id")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistrySnapshotOrderAndIsolation(t *testing.T) {
	reg := NewRegistry()
	peers := []*fakePeer{{}, {}, {}}
	for i, id := range []string{"x", "y", "z"} {
		_ = reg.Register(peers[i], ClientRecord{ID: id, RemoteAddr: "addr-" + id})
	}

	snap := reg.Snapshot()
	var ids []string
	for _, m := range snap {
		ids = append(ids, m.Record.ID)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, ids); diff != "" {
		t.Errorf("snapshot order mismatch (-want +got):\n%s", diff)
	}

	snap[0].Record.ID = "mutated"
	reg.Unregister(peers[1])
	if rec, _ := reg.Lookup(peers[0]); rec.ID != "x" {
		t.Errorf("snapshot mutation leaked into registry: %+v", rec)
	}
	if len(snap) != 3 {
		t.Errorf("snapshot changed after unregister, len=%d", len(snap))
	}
}

func TestNewID(t *testing.T) {
	valid := regexp.MustCompile(`^[0-9a-z]{9}$`)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if !valid.MatchString(id) {
			t.Fatalf("NewID() = %q, want 9 base-36 characters", id)
		}
		seen[id] = true
	}
	if len(seen) < 999 {
		t.Errorf("NewID produced too many collisions: %d unique of 1000", len(seen))
	}
}

func TestFormatID(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "000000000"},
		{35, "00000000z"},
		{idSpace - 1, "zzzzzzzzz"},
		{idSpace, "000000000"},
		{idSpace + 36, "000000010"},
	}
	for _, tt := range tests {
		if got := formatID(tt.in); got != tt.want {
			t.Errorf("formatID(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := formatID(math.MaxUint64); len(got) != IDLength {
		t.Errorf("formatID(MaxUint64) = %q, want %d characters", got, IDLength)
	}
}

// TestNewIDLeadingCharacterSpread checks the first character, which also
// starts the device name, covers the whole alphabet evenly.
func TestNewIDLeadingCharacterSpread(t *testing.T) {
	const perChar = 500
	counts := make(map[byte]int)
	for i := 0; i < 36*perChar; i++ {
		counts[NewID()[0]]++
	}
	if len(counts) != 36 {
		t.Fatalf("leading characters cover %d of 36 symbols", len(counts))
	}
	for c, n := range counts {
		if n < perChar*7/10 || n > perChar*13/10 {
			t.Errorf("leading %q appeared %d times, want about %d", c, n, perChar)
		}
	}
}

func TestDeviceName(t *testing.T) {
	tests := map[string]string{
		"k3j9x0abc": "Device k3j9",
		"ab":        "Device ab",
		"abcd":      "Device abcd",
	}
	for id, want := range tests {
		if got := DeviceName(id); got != want {
			t.Errorf("DeviceName(%q) = %q, want %q", id, got, want)
		}
	}
}
