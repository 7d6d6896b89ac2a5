/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: offset.go
Description: Conditional offset evaluator. Tests the header region of a container file against
ordered byte/bit conditions to find where record data begins. A candidate matches only when
all of its conditions hold; data too short for a condition is a non-match, never an error.
*/

package offset

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kleascm/bitlayout-analyzer/pkg/bitstream"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
)

// Matches reports whether a single condition holds for data.
func Matches(c schema.Condition, data []byte) bool {
	if c.Bits < 1 || c.Bits > 64 || c.BitOffset < 0 || c.BitOffset > 7 {
		return false
	}
	if c.ByteOffset >= uint64(len(data)) || c.RequiredBytes() > uint64(len(data)) {
		return false
	}
	r := bitstream.NewReader(data, c.BitOrder)
	if _, err := r.Seek(int64(c.StartBit()), io.SeekStart); err != nil {
		return false
	}
	v, err := r.Read(c.Bits)
	if err != nil {
		return false
	}
	return v == c.Value
}

// MatchesAll reports whether every condition holds. An empty list matches.
func MatchesAll(conditions []schema.Condition, data []byte) bool {
	for _, c := range conditions {
		if !Matches(c, data) {
			return false
		}
	}
	return true
}

// TryEvaluate returns the offset of the first candidate whose conditions all match.
func TryEvaluate(offsets []schema.ConditionalOffset, data []byte) (uint64, bool) {
	for _, co := range offsets {
		if MatchesAll(co.Conditions, data) {
			return co.Offset, true
		}
	}
	return 0, false
}

// RequiredPrefix returns the number of leading bytes needed to evaluate every
// condition. A condition placed beyond MaxConditionByteOffset saturates the result.
func RequiredPrefix(offsets []schema.ConditionalOffset) uint64 {
	var max uint64
	for _, co := range offsets {
		for _, c := range co.Conditions {
			if c.ByteOffset > schema.MaxConditionByteOffset {
				return math.MaxUint64
			}
			if n := c.RequiredBytes(); n > max {
				max = n
			}
		}
	}
	return max
}

// TryEvaluateFile reads the minimal prefix of the file at path and evaluates the candidates.
// The prefix never exceeds the file size; a short file is evaluated on what it holds.
func TryEvaluateFile(offsets []schema.ConditionalOffset, path string) (uint64, bool, error) {
	if len(offsets) == 0 {
		return 0, false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	size := RequiredPrefix(offsets)
	if info.Size() >= 0 && uint64(info.Size()) < size {
		size = uint64(info.Size())
	}

	prefix, err := io.ReadAll(io.LimitReader(f, int64(size)))
	if err != nil {
		return 0, false, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	off, ok := TryEvaluate(offsets, prefix)
	return off, ok, nil
}

// Resolve returns the data start for a file, falling back to def when nothing matches.
func Resolve(offsets []schema.ConditionalOffset, path string, def uint64) (uint64, error) {
	off, ok, err := TryEvaluateFile(offsets, path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return off, nil
}
