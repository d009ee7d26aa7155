package registry

import (
	"strings"
	"testing"
)

func TestJobGroup_SymmetricNeverPairsWithSelf(t *testing.T) {
	reg := Default()
	for _, g := range DefaultGroups() {
		pairs, err := g.Pairs(reg)
		if err != nil {
			t.Fatalf("%s: Pairs() error: %v", g.Name, err)
		}
		for _, p := range pairs {
			for _, dst := range p.Targets {
				if dst == p.Source {
					t.Errorf("%s: %s paired with itself", g.Name, p.Source.Name())
				}
			}
		}
	}
}

func TestJobGroup_SymmetricPairs(t *testing.T) {
	reg := Default()
	g := JobGroup{Name: GroupShogiVariants, Sources: ShogiVariants}

	pairs, err := g.Pairs(reg)
	if err != nil {
		t.Fatalf("Pairs() error: %v", err)
	}
	if len(pairs) != len(ShogiVariants) {
		t.Fatalf("expected %d sources, got %d", len(ShogiVariants), len(pairs))
	}
	for i, p := range pairs {
		if p.Source.Name() != ShogiVariants[i] {
			t.Errorf("source %d = %s, want %s", i, p.Source.Name(), ShogiVariants[i])
		}
		if len(p.Targets) != len(ShogiVariants)-1 {
			t.Errorf("%s: expected %d targets, got %d", p.Source.Name(), len(ShogiVariants)-1, len(p.Targets))
		}
	}
}

func TestJobGroup_DirectionalPairs(t *testing.T) {
	reg := Default()
	g := JobGroup{Name: GroupDiagonalHexToHex, Sources: []string{DiagonalHex}, Targets: []string{Hex}, Directional: true}

	pairs, err := g.Pairs(reg)
	if err != nil {
		t.Fatalf("Pairs() error: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 source, got %d", len(pairs))
	}
	if pairs[0].Source.Name() != DiagonalHex {
		t.Errorf("source = %s, want %s", pairs[0].Source.Name(), DiagonalHex)
	}
	if len(pairs[0].Targets) != 1 || pairs[0].Targets[0].Name() != Hex {
		t.Errorf("unexpected targets: %v", pairs[0].Targets)
	}
}

func TestJobGroup_UnknownGame(t *testing.T) {
	g := JobGroup{Name: "bad", Sources: []string{"LudiiChess.lud"}}
	if _, err := g.Pairs(Default()); err == nil {
		t.Fatal("expected error for unknown game")
	}
}

func TestJobGroup_Validate(t *testing.T) {
	reg := Default()
	tests := []struct {
		name    string
		group   JobGroup
		wantErr string
	}{
		{
			name:  "valid symmetric",
			group: JobGroup{Name: "g", Sources: []string{Hex, DiagonalHex}},
		},
		{
			name:    "no sources",
			group:   JobGroup{Name: "g"},
			wantErr: "no source games",
		},
		{
			name:    "directional without targets",
			group:   JobGroup{Name: "g", Sources: []string{Hex}, Directional: true},
			wantErr: "no target games",
		},
		{
			name:    "symmetric with targets",
			group:   JobGroup{Name: "g", Sources: []string{Hex}, Targets: []string{Gomoku}},
			wantErr: "must not list target games",
		},
		{
			name:    "single member schedules nothing",
			group:   JobGroup{Name: "g", Sources: []string{Hex}},
			wantErr: "schedules no conversions",
		},
		{
			name:    "unknown game",
			group:   JobGroup{Name: "g", Sources: []string{"nope"}},
			wantErr: "unknown game",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.group.Validate(reg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
