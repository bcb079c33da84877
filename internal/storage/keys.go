package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Object key layout in the gradient bucket:
//
//	gradients/{version}/{uid}/{window}.pt
//
// version is the templar release that produced the gradient, uid the
// neuron's UID on the subnet, window the training window number.

const gradientPrefix = "gradients/"

// GradientKey builds the object key for one gradient.
func GradientKey(version string, uid int, window int64) string {
	return fmt.Sprintf("%s%s/%d/%d.pt", gradientPrefix, version, uid, window)
}

// GradientRef identifies one stored gradient.
type GradientRef struct {
	Version string
	UID     int
	Window  int64
}

// ParseGradientKey extracts the gradient reference from an object key.
func ParseGradientKey(key string) (GradientRef, error) {
	rest, ok := strings.CutPrefix(key, gradientPrefix)
	if !ok {
		return GradientRef{}, fmt.Errorf("key %q is not under %s", key, gradientPrefix)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return GradientRef{}, fmt.Errorf("key %q does not match version/uid/window layout", key)
	}

	uid, err := strconv.Atoi(parts[1])
	if err != nil {
		return GradientRef{}, fmt.Errorf("key %q: invalid uid: %w", key, err)
	}

	windowStr, ok := strings.CutSuffix(parts[2], ".pt")
	if !ok {
		return GradientRef{}, fmt.Errorf("key %q: missing .pt suffix", key)
	}
	window, err := strconv.ParseInt(windowStr, 10, 64)
	if err != nil {
		return GradientRef{}, fmt.Errorf("key %q: invalid window: %w", key, err)
	}

	return GradientRef{Version: parts[0], UID: uid, Window: window}, nil
}

// ExtractUIDs parses object keys and returns the unique UIDs that have
// gradients stored, preserving first-seen order. Keys that do not match the
// layout are skipped.
func ExtractUIDs(keys []string) []int {
	seen := make(map[int]struct{})
	var uids []int
	for _, k := range keys {
		ref, err := ParseGradientKey(k)
		if err != nil {
			continue
		}
		if _, ok := seen[ref.UID]; !ok {
			seen[ref.UID] = struct{}{}
			uids = append(uids, ref.UID)
		}
	}
	return uids
}
