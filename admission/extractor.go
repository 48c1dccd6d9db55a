package admission

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule-based extraction. This is the deterministic fallback behind the
// interpreter: it is total and never fails, filling every field with a
// default when the text gives nothing to go on.

var gpuPatterns = []struct {
	re  *regexp.Regexp
	typ GPUType
}{
	{regexp.MustCompile(`v100`), GPUV100},
	{regexp.MustCompile(`a100`), GPUA100},
	{regexp.MustCompile(`rtx\s*3090`), GPURTX3090},
	{regexp.MustCompile(`rtx\s*4090`), GPURTX4090},
	{regexp.MustCompile(`h100`), GPUH100},
}

// Counter suffixes (Japanese) and English unit words following a number.
var quantityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*台`),
	regexp.MustCompile(`(\d+)\s*個`),
	regexp.MustCompile(`(\d+)\s*枚`),
	regexp.MustCompile(`(\d+)\s*基`),
	regexp.MustCompile(`(\d+)\s*units?`),
	regexp.MustCompile(`(\d+)\s*gpus?`),
}

// Kanji numerals 1-10, scanned in order so 十 does not shadow smaller ones.
var numberWords = []struct {
	word string
	n    int
}{
	{"一", 1}, {"二", 2}, {"三", 3}, {"四", 4}, {"五", 5},
	{"六", 6}, {"七", 7}, {"八", 8}, {"九", 9}, {"十", 10},
}

var (
	clockPattern    = regexp.MustCompile(`(\d{1,2})[時:](\d{1,2})?`)
	durationPattern = regexp.MustCompile(`(\d+)\s*時間`)
)

// Extract parses a raw reservation request into a StructuredRequest using
// fixed text patterns only. now anchors relative dates like "tomorrow".
func Extract(text string, now time.Time) StructuredRequest {
	normalized := strings.ToLower(text)

	gpuType := extractGPUType(normalized)
	quantity := extractQuantity(normalized)
	start, end, duration := extractTimeWindow(normalized, now)

	return StructuredRequest{
		GPUType:   gpuType,
		Quantity:  quantity,
		StartTime: start,
		EndTime:   end,
		Duration:  duration,
	}
}

func extractGPUType(text string) GPUType {
	for _, p := range gpuPatterns {
		if p.re.MatchString(text) {
			return p.typ
		}
	}
	return DefaultGPUType
}

func extractQuantity(text string) int {
	for _, re := range quantityPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return clampInt(atoiOrZero(m[1]), MinQuantity, MaxQuantity)
		}
	}
	for _, nw := range numberWords {
		if strings.Contains(text, nw.word) {
			return nw.n
		}
	}
	return MinQuantity
}

func extractTimeWindow(text string, now time.Time) (start, end time.Time, duration int) {
	day := now
	switch {
	case strings.Contains(text, "明日") || strings.Contains(text, "tomorrow"):
		day = now.AddDate(0, 0, 1)
	case strings.Contains(text, "来週") || strings.Contains(text, "next week"):
		day = now.AddDate(0, 0, 7)
	case strings.Contains(text, "今日") || strings.Contains(text, "today"):
		day = now
	}

	hour, minute := 10, 0
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour = atoiOrZero(m[1])
		if m[2] != "" {
			minute = atoiOrZero(m[2])
		}
	} else if strings.Contains(text, "午後") || strings.Contains(text, "pm") {
		hour = 13
	} else if strings.Contains(text, "午前") || strings.Contains(text, "am") {
		hour = 9
	}
	start = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())

	duration = MinDurationHours
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		duration = clampInt(atoiOrZero(m[1]), MinDurationHours, MaxDurationHours)
	} else if strings.Contains(text, "一日") || strings.Contains(text, "1日") {
		duration = 8
	} else if strings.Contains(text, "半日") {
		duration = 4
	}

	// A window that already started gets pushed to the next whole hour.
	if start.Before(now) {
		start = nextTopOfHour(now)
	}
	end = start.Add(time.Duration(duration) * time.Hour)
	return start, end, duration
}

// atoiOrZero is only fed digit-matched regexp groups.
func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
