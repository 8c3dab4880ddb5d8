// Package resolution defines the fixed set of transcode target resolutions and
// their queue mapping. The resolution is the sole routing key: every valid
// value owns exactly one queue, fixed at startup, and anything outside the set
// is rejected before the broker is touched.
package resolution

import (
	"fmt"
	"strconv"
	"strings"

	"rendition/internal/services"
)

// Resolution is a target output height in pixels.
type Resolution int

const (
	R360  Resolution = 360
	R480  Resolution = 480
	R720  Resolution = 720
	R1080 Resolution = 1080
)

var all = []Resolution{R360, R480, R720, R1080}

var valid = func() map[Resolution]struct{} {
	set := make(map[Resolution]struct{}, len(all))
	for _, r := range all {
		set[r] = struct{}{}
	}
	return set
}()

// All returns the supported resolutions in their fixed order. The slice is a
// copy; callers may not mutate routing by editing it.
func All() []Resolution {
	cp := make([]Resolution, len(all))
	copy(cp, all)
	return cp
}

// FromHeight validates a raw height against the supported set.
func FromHeight(height int) (Resolution, error) {
	r := Resolution(height)
	if _, ok := valid[r]; !ok {
		return 0, services.Wrap(services.ErrValidation, "resolution", "parse",
			fmt.Sprintf("unsupported resolution %d (supported: %s)", height, supportedList()), nil)
	}
	return r, nil
}

// Parse validates a string form such as "480" or "480p".
func Parse(value string) (Resolution, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(value)), "p")
	if trimmed == "" {
		return 0, services.Wrap(services.ErrValidation, "resolution", "parse", "empty resolution", nil)
	}
	height, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "resolution", "parse",
			fmt.Sprintf("non-numeric resolution %q", value), nil)
	}
	return FromHeight(height)
}

// Height returns the pixel height of the resolution.
func (r Resolution) Height() int { return int(r) }

// String renders the conventional "480p" form.
func (r Resolution) String() string { return strconv.Itoa(int(r)) + "p" }

// QueueName returns the broker queue dedicated to this resolution.
func (r Resolution) QueueName() string {
	return "transcode:" + strconv.Itoa(int(r))
}

func supportedList() string {
	parts := make([]string, len(all))
	for i, r := range all {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ", ")
}
