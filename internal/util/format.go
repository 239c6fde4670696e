package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatAmount renders a cost total the way report files carry it: two
// decimals, no grouping, no currency sign. Rounding works on the exact binary
// value, so 0.125 gives "0.12".
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// FormatCount groups thousands with commas
func FormatCount(n int64) string {
	str := fmt.Sprintf("%d", n)
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	return sign + groupThousands(str)
}

func FormatCurrency(amount float64) string {
	// First format with 2 decimal places
	str := fmt.Sprintf("%.2f", amount)

	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}

	intPart, decPart, _ := strings.Cut(str, ".")
	if decPart == "" {
		decPart = "00"
	}
	return fmt.Sprintf("%s$%s.%s", sign, groupThousands(intPart), decPart)
}

// FormatDuration renders how long a run took
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
