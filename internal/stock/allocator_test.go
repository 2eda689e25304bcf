package stock

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

func lot(id string, qty int, age time.Duration) model.Item {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.Item{ID: id, Kind: model.KindMaterial, Quantity: qty, CreatedAt: base.Add(age)}
}

func TestAllocate(t *testing.T) {
	reserved := lot("r", 100, 0)
	reserved.Reserved = true

	tests := []struct {
		name      string
		lots      []model.Item
		requested int
		want      []Draw
		wantErr   error
	}{
		{
			name:      "largest lot first",
			lots:      []model.Item{lot("a", 3, 0), lot("b", 10, time.Hour), lot("c", 5, 2*time.Hour)},
			requested: 12,
			want:      []Draw{{"b", 10}, {"c", 2}},
		},
		{
			name:      "single lot covers request",
			lots:      []model.Item{lot("a", 3, 0), lot("b", 10, time.Hour)},
			requested: 4,
			want:      []Draw{{"b", 4}},
		},
		{
			name:      "ties go oldest first",
			lots:      []model.Item{lot("new", 5, time.Hour), lot("old", 5, 0)},
			requested: 7,
			want:      []Draw{{"old", 5}, {"new", 2}},
		},
		{
			name:      "same age ties go by id",
			lots:      []model.Item{lot("b", 5, 0), lot("a", 5, 0)},
			requested: 5,
			want:      []Draw{{"a", 5}},
		},
		{
			name:      "reserved and empty lots skipped",
			lots:      []model.Item{reserved, lot("empty", 0, 0), lot("a", 4, 0)},
			requested: 4,
			want:      []Draw{{"a", 4}},
		},
		{
			name:      "exact total drains every lot",
			lots:      []model.Item{lot("a", 2, 0), lot("b", 3, 0)},
			requested: 5,
			want:      []Draw{{"b", 3}, {"a", 2}},
		},
		{
			name:      "insufficient",
			lots:      []model.Item{reserved, lot("a", 4, 0)},
			requested: 5,
			wantErr:   ErrInsufficientStock,
		},
		{
			name:      "no lots",
			requested: 1,
			wantErr:   ErrInsufficientStock,
		},
		{
			name:      "non-positive request",
			lots:      []model.Item{lot("a", 4, 0)},
			requested: 0,
			wantErr:   ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.lots, tt.requested)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if got != nil {
					t.Errorf("expected no draws on failure, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	lots := []model.Item{lot("a", 4, 0), lot("b", 4, 0), lot("c", 9, time.Minute), lot("d", 1, 0)}

	first, err := Allocate(lots, 15)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := Allocate(lots, 15)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: expected %v, got %v", i, first, again)
		}
	}
}

func TestAllocateDoesNotModifyInput(t *testing.T) {
	lots := []model.Item{lot("a", 1, 0), lot("b", 9, 0)}
	before := append([]model.Item(nil), lots...)

	Allocate(lots, 5)

	if !reflect.DeepEqual(lots, before) {
		t.Errorf("input changed: %v", lots)
	}
}
