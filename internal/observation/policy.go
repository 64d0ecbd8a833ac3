package observation

import (
	"fmt"
	"strings"
)

// DispatchPolicy decides what Notify does with listener failures.
type DispatchPolicy string

const (
	// PolicyLog logs each failure and keeps going; Notify returns nil.
	PolicyLog DispatchPolicy = "log"
	// PolicyAggregate keeps going and returns every failure joined.
	PolicyAggregate DispatchPolicy = "aggregate"
)

// ParseDispatchPolicy accepts "log" and "aggregate". Empty means log.
func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	switch DispatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLog:
		return PolicyLog, nil
	case PolicyAggregate:
		return PolicyAggregate, nil
	default:
		return "", fmt.Errorf("unknown dispatch policy %q (want log or aggregate)", s)
	}
}
