package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the default grace period applied to
	// expiry checks, absorbing NTP drift between the minting and verifying
	// hosts. Expired artifacts remain usable for at most this long past
	// their true expiry.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks expiry at the given instant with the default grace period
func IsExpired(expiresAt, now time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, now, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod checks expiry at the given instant with a custom
// grace period. A zero expiry means no expiration.
func IsExpiredWithGracePeriod(expiresAt, now time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt.Add(gracePeriod))
}
