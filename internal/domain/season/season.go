// Package season parses "YYYY/YYYY" season labels.
package season

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnparsedLabel is returned for labels that are not "YYYY/YYYY".
var ErrUnparsedLabel = errors.New("season label not in YYYY/YYYY form")

// Parse splits label into its two year components.
func Parse(label string) (start, end int, err error) {
	parts := strings.Split(strings.TrimSpace(label), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%q: %w", label, ErrUnparsedLabel)
	}
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", label, ErrUnparsedLabel)
	}
	end, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", label, ErrUnparsedLabel)
	}
	return start, end, nil
}

// Previous decrements both year components: "2023/2024" -> "2022/2023".
func Previous(label string) (string, error) {
	start, end, err := Parse(label)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d", start-1, end-1), nil
}

// Sort orders labels chronologically by start year. Unparsed labels keep
// their relative input order and go after the parsed ones.
func Sort(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool {
		si, _, ei := Parse(out[i])
		sj, _, ej := Parse(out[j])
		switch {
		case ei != nil && ej != nil:
			return false
		case ei != nil:
			return false
		case ej != nil:
			return true
		default:
			return si < sj
		}
	})
	return out
}
