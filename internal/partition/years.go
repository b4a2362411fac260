package partition

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HistoryEpoch is the first year of the full-history mode
const HistoryEpoch = 2005

// AllYears is the numeric full-history sentinel
const AllYears = -1

// YearSelector selects the calendar years of a run.
// Year > 0: exactly that year. Year == AllYears: full history. Year == 0: current year.
type YearSelector struct {
	Year int
}

// ParseYearSelector parses "", "0", "all", "-1" or an explicit year
func ParseYearSelector(s string) (YearSelector, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "0", "current":
		return YearSelector{}, nil
	case "all", "-1":
		return YearSelector{Year: AllYears}, nil
	}

	y, err := strconv.Atoi(s)
	if err != nil {
		return YearSelector{}, fmt.Errorf("invalid year selector %q", s)
	}
	if y < 1900 || y > 9999 {
		return YearSelector{}, fmt.Errorf("year %d out of range", y)
	}
	return YearSelector{Year: y}, nil
}

// String renders the selector the way ParseYearSelector accepts it
func (s YearSelector) String() string {
	switch {
	case s.Year == AllYears:
		return "all"
	case s.Year <= 0:
		return "current"
	default:
		return strconv.Itoa(s.Year)
	}
}

// ResolveYears expands a selector into the list of years to process
func ResolveYears(sel YearSelector, now time.Time) []int {
	switch {
	case sel.Year > 0:
		return []int{sel.Year}
	case sel.Year == AllYears:
		// 마지막 완료 연도까지
		last := now.Year() - 1
		if last < HistoryEpoch {
			return nil
		}
		years := make([]int, 0, last-HistoryEpoch+1)
		for y := HistoryEpoch; y <= last; y++ {
			years = append(years, y)
		}
		return years
	default:
		return []int{now.Year()}
	}
}
