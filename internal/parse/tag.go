package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	tagRe   = regexp.MustCompile(`^([A-Z]{1,6})[\s-]*(\d{1,4})([A-Z]?)(?:\s*-\s*(\d{1,3}))?$`)
)

// ParsedTag holds the structured parts of an equipment tag such as
// "TR-05A-2": area code TR, number 5, suffix A, sub-unit 2.
type ParsedTag struct {
	Area   string
	Number int
	Suffix string
	Seq    int
}

// String renders the canonical form of the tag.
func (p ParsedTag) String() string {
	s := fmt.Sprintf("%s-%02d%s", p.Area, p.Number, p.Suffix)
	if p.Seq > 0 {
		s += fmt.Sprintf("-%d", p.Seq)
	}
	return s
}

// ParseTag extracts area, number and sub-unit from a raw equipment tag.
func ParseTag(raw string) (ParsedTag, error) {
	// '#' is used on the floor as a separator, not as part of the tag
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "#", " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))

	m := tagRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedTag{}, fmt.Errorf("unable to parse equipment tag: %q", raw)
	}

	number, err := strconv.Atoi(m[2])
	if err != nil {
		return ParsedTag{}, fmt.Errorf("unable to parse equipment number in %q: %w", raw, err)
	}

	seq := 0
	if m[4] != "" {
		if seq, err = strconv.Atoi(m[4]); err != nil {
			return ParsedTag{}, fmt.Errorf("unable to parse sub-unit in %q: %w", raw, err)
		}
	}

	return ParsedTag{Area: m[1], Number: number, Suffix: m[3], Seq: seq}, nil
}

// NormalizeTag returns the canonical tag and its area, or the trimmed input
// and an empty area when the tag does not follow the plant convention.
func NormalizeTag(raw string) (tag, area string) {
	p, err := ParseTag(raw)
	if err != nil {
		return strings.TrimSpace(raw), ""
	}
	return p.String(), p.Area
}
