package feature

import "testing"

func TestKnown(t *testing.T) {
	for _, name := range All {
		if !Known(name) {
			t.Fatalf("expected %s to be known", name)
		}
	}
	if Known("root_access") {
		t.Fatalf("unexpected feature accepted")
	}
	if Known("") {
		t.Fatalf("empty name accepted")
	}
}
