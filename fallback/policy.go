package fallback

import (
	"errors"
	"fmt"
	"strings"
)

// Policy is a bit set selecting which execution failures are allowed to
// divert to the fallback backend.
type Policy uint32

const (
	// PolicyDisabled never falls back; every error passes through.
	PolicyDisabled Policy = 0

	// PolicyOnDeviceError falls back on device-side failures (memory
	// exhaustion, device loss).
	PolicyOnDeviceError Policy = 1 << iota
	// PolicyOnUnsupportedOp falls back when the backend rejects an
	// operation it cannot execute.
	PolicyOnUnsupportedOp

	// PolicyAll falls back on every classified execution error.
	PolicyAll = PolicyOnDeviceError | PolicyOnUnsupportedOp
)

// Has reports whether the policy includes the given bit.
func (p Policy) Has(bit Policy) bool { return p&bit != 0 }

func (p Policy) String() string {
	if p == PolicyDisabled {
		return "disabled"
	}
	var parts []string
	if p.Has(PolicyOnDeviceError) {
		parts = append(parts, "device-error")
	}
	if p.Has(PolicyOnUnsupportedOp) {
		parts = append(parts, "unsupported-op")
	}
	return strings.Join(parts, "|")
}

// ParsePolicy reads a policy from its textual form: "disabled", "all", or a
// "|"-separated list of "device-error" and "unsupported-op".
func ParsePolicy(s string) (Policy, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "disabled":
		return PolicyDisabled, nil
	case "all":
		return PolicyAll, nil
	}
	var p Policy
	for _, part := range strings.Split(s, "|") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "device-error":
			p |= PolicyOnDeviceError
		case "unsupported-op":
			p |= PolicyOnUnsupportedOp
		default:
			return PolicyDisabled, fmt.Errorf("unknown fallback policy %q", part)
		}
	}
	return p, nil
}

// DeviceError reports a device-side execution failure.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// UnsupportedOpError reports an operation the backend cannot execute.
type UnsupportedOpError struct {
	Op string
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("unsupported op %q", e.Op)
}

// Classify maps an execution error to the policy bit that would permit
// falling back on it. Unclassified errors map to PolicyDisabled and never
// fall back.
func Classify(err error) Policy {
	var de *DeviceError
	if errors.As(err, &de) {
		return PolicyOnDeviceError
	}
	var ue *UnsupportedOpError
	if errors.As(err, &ue) {
		return PolicyOnUnsupportedOp
	}
	return PolicyDisabled
}
