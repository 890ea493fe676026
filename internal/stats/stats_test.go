package stats

import "testing"

func TestCompareWithPrevious(t *testing.T) {
	cur := &Snapshot{TotalWins: 10, Kills: 250, LostTraps: 3}
	prev := &Snapshot{TotalWins: 7, Kills: 200, LostTraps: 3}

	cmp := Compare(cur, prev)
	if len(cmp) != 15 {
		t.Fatalf("expected all counters present, got %d", len(cmp))
	}
	if d := cmp["total_wins"]; d.Current != 10 || d.Previous != 7 {
		t.Fatalf("unexpected total_wins delta: %+v", d)
	}
	if d := cmp["kills"]; d.Current != 250 || d.Previous != 200 {
		t.Fatalf("unexpected kills delta: %+v", d)
	}
	if d := cmp["lost_traps"]; d.Current != 3 || d.Previous != 3 {
		t.Fatalf("unexpected lost_traps delta: %+v", d)
	}
}

func TestCompareSingleSnapshotFallsBack(t *testing.T) {
	cur := &Snapshot{TotalWins: 4, Kills: 90}
	cmp := Compare(cur, nil)
	for name, d := range cmp {
		if d.Current != d.Previous {
			t.Fatalf("counter %s: previous should fall back to current, got %+v", name, d)
		}
	}
	if cmp["kills"].Current != 90 {
		t.Fatalf("unexpected kills value: %+v", cmp["kills"])
	}
}
