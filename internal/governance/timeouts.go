package governance

import "time"

// DefaultInvocationTimeout bounds a single tool invocation when neither the
// node config nor the engine config names a deadline.
const DefaultInvocationTimeout = 60 * time.Second

// EffectiveTimeout returns the smallest positive duration among the
// candidates. When several sources configure a deadline for the same node,
// the tightest one wins; zero and negative candidates are ignored.
func EffectiveTimeout(candidates ...time.Duration) time.Duration {
	var effective time.Duration
	for _, c := range candidates {
		if c <= 0 {
			continue
		}
		if effective == 0 || c < effective {
			effective = c
		}
	}
	if effective == 0 {
		return DefaultInvocationTimeout
	}
	return effective
}

// TimeoutFromConfig reads a per-node "timeout_ms" override from a node's
// config map. JSON decoding yields float64, YAML yields int; both are
// accepted. Zero is returned when the key is absent or malformed.
func TimeoutFromConfig(config map[string]any) time.Duration {
	if config == nil {
		return 0
	}
	switch v := config["timeout_ms"].(type) {
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	default:
		return 0
	}
}
