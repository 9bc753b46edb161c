// Package sortkey builds natural-order sort keys for file names.
package sortkey

import (
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
	"golang.org/x/text/unicode/norm"
)

// digitWidth is the zero-padded width of an encoded digit run. It holds
// any uint64.
const digitWidth = 20

// overflow marks a digit run longer than digitWidth. It sorts after every
// digit, and the run's padded length follows it.
const overflow = ':'

// Key returns a key for name such that plain string comparison of keys
// orders names the way a person would: digit runs compare by numeric value
// regardless of leading zeros, everything else compares literally.
func Key(name string) string {
	var b strings.Builder
	b.Grow(len(name) + digitWidth)

	for i := 0; i < len(name); {
		if !isDigit(name[i]) {
			b.WriteByte(name[i])
			i++
			continue
		}

		start := i
		for i < len(name) && isDigit(name[i]) {
			i++
		}
		run := strings.TrimLeft(name[start:i], "0")
		if run == "" {
			run = "0"
		}
		if len(run) > digitWidth {
			b.WriteByte(overflow)
			writePadded(&b, strconv.Itoa(len(run)))
		}
		writePadded(&b, run)
	}

	return b.String()
}

func writePadded(b *strings.Builder, digits string) {
	for pad := digitWidth - len(digits); pad > 0; pad-- {
		b.WriteByte('0')
	}
	b.WriteString(digits)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Less reports whether a sorts before b. Names with equal keys ("1" and
// "01") fall back to natural.Less and finally to byte order, so Less is a
// strict total order.
func Less(a, b string) bool {
	ka, kb := Key(norm.NFC.String(a)), Key(norm.NFC.String(b))
	if ka != kb {
		return ka < kb
	}
	return tieBreak(a, b)
}

func tieBreak(a, b string) bool {
	if natural.Less(a, b) {
		return true
	}
	if natural.Less(b, a) {
		return false
	}
	return a < b
}

// Strings sorts names in place in natural order, computing each key once.
func Strings(names []string) {
	keys := make(map[string]string, len(names))
	for _, n := range names {
		if _, ok := keys[n]; !ok {
			keys[n] = Key(norm.NFC.String(n))
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		ki, kj := keys[names[i]], keys[names[j]]
		if ki != kj {
			return ki < kj
		}
		return tieBreak(names[i], names[j])
	})
}
