package security

import (
	"testing"
	"time"
)

func TestIsExpiredWithGracePeriod(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	grace := 5 * time.Second

	tests := []struct {
		name      string
		expiresAt time.Time
		now       time.Time
		want      bool
	}{
		{
			name:      "well before expiry",
			expiresAt: base.Add(time.Hour),
			now:       base,
			want:      false,
		},
		{
			name:      "exactly at expiry",
			expiresAt: base,
			now:       base,
			want:      false,
		},
		{
			name:      "inside grace period",
			expiresAt: base,
			now:       base.Add(3 * time.Second),
			want:      false,
		},
		{
			name:      "at grace boundary",
			expiresAt: base,
			now:       base.Add(grace),
			want:      false,
		},
		{
			name:      "beyond grace period",
			expiresAt: base,
			now:       base.Add(grace + time.Second),
			want:      true,
		},
		{
			name:      "zero expiry never expires",
			expiresAt: time.Time{},
			now:       base.AddDate(100, 0, 0),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpiredWithGracePeriod(tt.expiresAt, tt.now, grace); got != tt.want {
				t.Errorf("IsExpiredWithGracePeriod(%v, %v) = %v, want %v", tt.expiresAt, tt.now, got, tt.want)
			}
		})
	}
}

func TestIsExpiredUsesDefaultGrace(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	if IsExpired(base, base.Add(DefaultClockSkewGracePeriod)) {
		t.Error("expected expiry inside the default grace period to pass")
	}
	if !IsExpired(base, base.Add(DefaultClockSkewGracePeriod+time.Second)) {
		t.Error("expected expiry beyond the default grace period to fail")
	}
}
