package contract

import "testing"

func TestParseIgnores(t *testing.T) {
	t.Run("same-line directive", func(t *testing.T) {
		igs := ParseIgnores("a.py", "x = 1  # phaser:ignore no-magic\ny = 2\n")
		if len(igs) != 1 {
			t.Fatalf("len = %d", len(igs))
		}
		if igs[0].Line != 1 || igs[0].Scope != ScopeLine || len(igs[0].RuleIDs) != 1 || igs[0].RuleIDs[0] != "no-magic" {
			t.Errorf("ignore = %+v", igs[0])
		}
	})

	t.Run("next-line and rule list", func(t *testing.T) {
		igs := ParseIgnores("a.go", "// phaser:ignore-next-line no-print, no-panic\nfmt.Println()\n")
		if len(igs) != 1 {
			t.Fatalf("len = %d", len(igs))
		}
		if igs[0].Scope != ScopeNextLine || len(igs[0].RuleIDs) != 2 {
			t.Errorf("ignore = %+v", igs[0])
		}
	})

	t.Run("ignore-all with no list matches everything", func(t *testing.T) {
		igs := ParseIgnores("a.py", "# phaser:ignore-all\n")
		if len(igs) != 1 || !igs[0].All || len(igs[0].RuleIDs) != 0 {
			t.Fatalf("igs = %+v", igs)
		}
	})

	t.Run("unknown suffix is not scanned", func(t *testing.T) {
		if igs := ParseIgnores("data.bin", "# phaser:ignore x\n"); igs != nil {
			t.Errorf("igs = %+v, want none", igs)
		}
	})
}

func TestSuppressed(t *testing.T) {
	v := func(rule string, line int) Violation {
		return Violation{RuleID: rule, Path: "a.py", Line: line}
	}
	tests := []struct {
		name    string
		ignores []Ignore
		v       Violation
		want    bool
	}{
		{"same line same rule", []Ignore{{RuleIDs: []string{"r1"}, Line: 3, Scope: ScopeLine}}, v("r1", 3), true},
		{"same line other rule", []Ignore{{RuleIDs: []string{"r2"}, Line: 3, Scope: ScopeLine}}, v("r1", 3), false},
		{"empty list matches all", []Ignore{{Line: 3, Scope: ScopeLine}}, v("r1", 3), true},
		{"next-line covers following line", []Ignore{{RuleIDs: []string{"r1"}, Line: 2, Scope: ScopeNextLine}}, v("r1", 3), true},
		{"next-line misses same line", []Ignore{{RuleIDs: []string{"r1"}, Line: 3, Scope: ScopeNextLine}}, v("r1", 3), false},
		{"all scope covers any line", []Ignore{{All: true}}, v("r1", 99), true},
		{"whole-file violation only matches all", []Ignore{{Line: 1, Scope: ScopeLine}}, v("r1", 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Suppressed(tt.v, tt.ignores); got != tt.want {
				t.Errorf("Suppressed = %v, want %v", got, tt.want)
			}
		})
	}
}
