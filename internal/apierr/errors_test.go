package apierr_test

// Coverage Notes:
// - Tests verify sentinel error identity and wrapping with errors.Is.
// - All sentinels are covered, including the fallback-policy ones
//   (ErrOverloaded, ErrPayloadTooLarge).

import (
	"errors"
	"fmt"
	"testing"

	"github.com/scribeworks/scribed/internal/apierr"
)

func allSentinels() []struct {
	name     string
	sentinel error
} {
	return []struct {
		name     string
		sentinel error
	}{
		{"ErrOverloaded", apierr.ErrOverloaded},
		{"ErrRateLimit", apierr.ErrRateLimit},
		{"ErrQuotaExceeded", apierr.ErrQuotaExceeded},
		{"ErrTimeout", apierr.ErrTimeout},
		{"ErrAuthFailed", apierr.ErrAuthFailed},
		{"ErrPayloadTooLarge", apierr.ErrPayloadTooLarge},
		{"ErrBadRequest", apierr.ErrBadRequest},
	}
}

// ---------------------------------------------------------------------------
// TestSentinelErrorWrapping - wrapped errors still match with errors.Is
// ---------------------------------------------------------------------------

func TestSentinelErrorWrapping(t *testing.T) {
	t.Parallel()

	for _, tt := range allSentinels() {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := fmt.Errorf("some context: %w", tt.sentinel)

			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(wrapped, %v) = false, want true", tt.sentinel)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestSentinelErrorDistinct - sentinels are distinct from each other
// ---------------------------------------------------------------------------

func TestSentinelErrorDistinct(t *testing.T) {
	t.Parallel()

	sentinels := allSentinels()
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a.sentinel, b.sentinel) {
				t.Errorf("errors.Is(%s, %s) = true, want false", a.name, b.name)
			}
		}
	}
}
