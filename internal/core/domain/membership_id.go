package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultIDPrefix = "MEM"
	DefaultIDWidth  = 4

	// MaxIDWidth is the widest sequence whose maximum fits an int64
	MaxIDWidth = 18
)

// IDAllocator derives year-scoped membership identifiers of the form
// {Prefix}-{year}-{sequence}. Sequence is zero-padded to at least Width digits.
type IDAllocator struct {
	Prefix string
	Width  int
}

// NewIDAllocator returns an allocator, falling back to defaults for empty values
func NewIDAllocator(prefix string, width int) IDAllocator {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	if width < 1 {
		width = DefaultIDWidth
	}
	return IDAllocator{Prefix: prefix, Width: width}
}

// MaxSequence is the largest sequence representable in Width digits,
// saturating at math.MaxInt for widths beyond MaxIDWidth
func (a IDAllocator) MaxSequence() int {
	max := 1
	for i := 0; i < a.Width; i++ {
		if max > math.MaxInt/10 {
			return math.MaxInt
		}
		max *= 10
	}
	return max - 1
}

// YearPrefix is the common prefix of every identifier issued in year
func (a IDAllocator) YearPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", a.Prefix, year)
}

// Format renders an identifier without range checks
func (a IDAllocator) Format(year, seq int) string {
	return fmt.Sprintf("%s%0*d", a.YearPrefix(year), a.Width, seq)
}

// Parse splits an identifier into year and sequence. Sequences wider than
// Width are accepted so identifiers issued under a wider setting still count.
func (a IDAllocator) Parse(id string) (year, seq int, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(id), a.Prefix+"-")
	if !found {
		return 0, 0, false
	}
	yearPart, seqPart, found := strings.Cut(rest, "-")
	if !found || yearPart == "" || seqPart == "" {
		return 0, 0, false
	}
	// the year is rendered with %d, so a leading zero never comes from Format
	if !digitsOnly(yearPart) || !digitsOnly(seqPart) || (yearPart[0] == '0' && len(yearPart) > 1) {
		return 0, 0, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(seqPart)
	if err != nil {
		return 0, 0, false
	}
	return year, seq, true
}

// Next returns max+1 over the identifiers of year found in existing.
// Identifiers of other years or of foreign formats are ignored, and gaps
// are never reused.
func (a IDAllocator) Next(existing []string, year int) (string, error) {
	highest := 0
	for _, id := range existing {
		y, seq, ok := a.Parse(id)
		if !ok || y != year {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}

	if highest >= a.MaxSequence() {
		return "", fmt.Errorf("%w: year %d reached %d", ErrAllocationExhausted, year, highest)
	}
	return a.Format(year, highest+1), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AllocateMembershipID allocates with the default MEM prefix and width 4
func AllocateMembershipID(existing []string, year int) (string, error) {
	return NewIDAllocator(DefaultIDPrefix, DefaultIDWidth).Next(existing, year)
}
