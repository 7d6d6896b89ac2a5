/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: entropy.go
Description: Shannon entropy and LZ match estimation over byte buffers. These are the cheap
compressibility signals reported next to real codec sizes.
*/

package compression

import (
	"encoding/binary"
	"math"
)

// Entropy returns the Shannon entropy of data in bits per byte (0..8).
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var histogram [256]uint64
	for _, b := range data {
		histogram[b]++
	}
	total := float64(len(data))
	entropy := 0.0
	for _, count := range histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

const (
	matchTableBits = 16
	matchTableSize = 1 << matchTableBits
	minMatchLength = 3
)

func hash3(u uint32) uint32 {
	return ((u & 0xFFFFFF) * 0x1E35A7BD) >> (32 - matchTableBits)
}

// EstimateLZMatches counts positions where the next 3 bytes repeat an earlier
// occurrence found through a single-entry hash table. It approximates how many
// back-references an LZ77 match finder would emit.
func EstimateLZMatches(data []byte) int {
	if len(data) < minMatchLength+1 {
		return 0
	}
	table := make([]int32, matchTableSize)
	matches := 0
	var window [4]byte
	for pos := 0; pos+minMatchLength <= len(data); pos++ {
		copy(window[:], data[pos:])
		cur := binary.LittleEndian.Uint32(window[:]) & 0xFFFFFF
		h := hash3(cur)
		candidate := int(table[h]) - 1
		table[h] = int32(pos + 1)
		if candidate < 0 {
			continue
		}
		copy(window[:], data[candidate:])
		if binary.LittleEndian.Uint32(window[:])&0xFFFFFF == cur {
			matches++
		}
	}
	return matches
}
