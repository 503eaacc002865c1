package link

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDialTimeoutMS       = 3000
	defaultValidationTimeoutMS = 15000
	defaultInversionTimeoutMS  = 15000
	defaultCounterTimeoutMS    = 5000
)

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// dialTimeout bounds one candidate attempt. Short by default: failover across
// the addresses embedded in a pairing code has to feel instantaneous.
func dialTimeout() time.Duration {
	if v, ok := envInt("ZELARA_DIAL_TIMEOUT_MS"); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultDialTimeoutMS * time.Millisecond
}

func validationTimeout() time.Duration {
	if v, ok := envInt("ZELARA_VALIDATION_TIMEOUT_MS"); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultValidationTimeoutMS * time.Millisecond
}

func inversionTimeout() time.Duration {
	if v, ok := envInt("ZELARA_INVERSION_TIMEOUT_MS"); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultInversionTimeoutMS * time.Millisecond
}

// counterTimeout is deliberately tighter than the image tasks: the counter
// heartbeat is frequent and low value.
func counterTimeout() time.Duration {
	if v, ok := envInt("ZELARA_COUNTER_TIMEOUT_MS"); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return defaultCounterTimeoutMS * time.Millisecond
}
