package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestBestPromo(t *testing.T) {
	svc := uuid.New()
	other := uuid.New()
	promos := []*Promo{
		{ServiceID: svc, Name: "october", PromoPrice: 80, StartsOn: day("2026-10-01"), EndsOn: day("2026-10-31")},
		{ServiceID: svc, Name: "weekend", PromoPrice: 60, StartsOn: day("2026-10-24"), EndsOn: day("2026-10-25")},
		{ServiceID: other, Name: "other", PromoPrice: 10, StartsOn: day("2026-10-01"), EndsOn: day("2026-10-31")},
	}

	tests := []struct {
		date string
		want string
	}{
		{"2026-10-19", "october"},
		{"2026-10-24", "weekend"},
		{"2026-10-31", "october"},
		{"2026-11-01", ""},
	}
	for _, tt := range tests {
		got := BestPromo(promos, svc, day(tt.date))
		name := ""
		if got != nil {
			name = got.Name
		}
		if name != tt.want {
			t.Errorf("BestPromo(%s) = %q, want %q", tt.date, name, tt.want)
		}
	}
}

func TestServiceBlocks(t *testing.T) {
	tests := map[int]int{20: 1, 30: 1, 45: 2, 60: 2, 90: 3}
	for minutes, want := range tests {
		s := &Service{EstimatedMinutes: minutes}
		if got := s.Blocks(); got != want {
			t.Errorf("Blocks() for %d minutes = %d, want %d", minutes, got, want)
		}
	}
}
