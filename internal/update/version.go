package update

import (
	"strconv"
	"strings"
)

// segmentClass classifies a version string component.
type segmentClass int

const (
	classDigit segmentClass = iota
	classPeriod
	classOther
)

func classOf(c byte) segmentClass {
	switch {
	case c == '.':
		return classPeriod
	case c >= '0' && c <= '9':
		return classDigit
	default:
		return classOther
	}
}

// SplitVersion splits a version string into runs of characters of the same
// class (digits, periods, anything else). A period always starts a new
// segment, so "1..2" yields ["1", ".", ".", "2"].
//
// For example "1.20rc3" is split into ["1", ".", "20", "rc", "3"].
func SplitVersion(version string) []string {
	if version == "" {
		return nil
	}

	var parts []string
	start := 0
	prev := classOf(version[0])

	for i := 1; i < len(version); i++ {
		cur := classOf(version[i])
		if cur != prev || prev == classPeriod {
			parts = append(parts, version[start:i])
			start = i
		}
		prev = cur
	}

	return append(parts, version[start:])
}

// segmentNumber parses a digit segment. Values that overflow an int
// compare as zero.
func segmentNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// CompareVersions compares two free-form version strings
// Returns:
//   - 1 if a > b
//   - 0 if a == b
//   - -1 if a < b
//
// Ordering rules:
//   - "1.2.0" > "1.2rc1" (numbers and periods outrank strings)
//   - "1.5" > "1.5b3" (a trailing string segment marks a pre-release)
//   - "1.5.1" > "1.5" (a trailing numeric segment marks a newer release)
func CompareVersions(a, b string) int {
	partsA := SplitVersion(a)
	partsB := SplitVersion(b)

	n := min(len(partsA), len(partsB))
	for i := 0; i < n; i++ {
		segA, segB := partsA[i], partsB[i]
		classA, classB := classOf(segA[0]), classOf(segB[0])

		if classA == classB {
			switch classA {
			case classOther:
				if c := strings.Compare(segA, segB); c != 0 {
					return c
				}
			case classDigit:
				numA, numB := segmentNumber(segA), segmentNumber(segB)
				if numA > numB {
					return 1
				}
				if numA < numB {
					return -1
				}
			}
			continue
		}

		switch {
		case classA != classOther && classB == classOther:
			return 1
		case classA == classOther && classB != classOther:
			return -1
		case classA == classDigit:
			// digit against period: the period is out of place
			return 1
		default:
			return -1
		}
	}

	if len(partsA) == len(partsB) {
		return 0
	}

	// Equal up to the shorter length; look at the first extra segment
	// of the longer one.
	longer, shorterWins, longerWins := partsA, -1, 1
	if len(partsB) > len(partsA) {
		longer, shorterWins, longerWins = partsB, 1, -1
	}

	if classOf(longer[n][0]) == classOther {
		return shorterWins
	}
	return longerWins
}
