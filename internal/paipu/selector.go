package paipu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

// Selector picks a round of a game: kyoku 0-3 are East 1-4, 4-7 South 1-4 and so on.
// A nil Honba matches any honba.
type Selector struct {
	Kyoku int
	Honba *int
}

// Exact builds a selector with both fields set.
func Exact(kyoku, honba int) Selector {
	return Selector{Kyoku: kyoku, Honba: &honba}
}

var winds = []string{"E", "S", "W", "N"}

func (s Selector) String() string {
	wind := "?"
	if w := s.Kyoku / 4; s.Kyoku >= 0 && w < len(winds) {
		wind = winds[w]
	}
	out := wind + strconv.Itoa(s.Kyoku%4+1)
	if s.Honba != nil {
		out += "-" + strconv.Itoa(*s.Honba)
	}
	return out
}

// Equal compares two selectors by value.
func (s Selector) Equal(o Selector) bool {
	if s.Kyoku != o.Kyoku || (s.Honba == nil) != (o.Honba == nil) {
		return false
	}
	return s.Honba == nil || *s.Honba == *o.Honba
}

var (
	latinSelector = regexp.MustCompile(`(?i)^([eswn])([1-4])(?:[-.](\d{1,2}))?$`)
	hanSelector   = regexp.MustCompile(`^([东東南西北])([一二三四1-4])局(?:([0-9零〇一二两三四五六七八九十]+)本[场場])?$`)
	hanWinds      = map[string]int{"东": 0, "東": 0, "南": 1, "西": 2, "北": 3}
	latinWinds    = map[string]int{"e": 0, "s": 1, "w": 2, "n": 3}
)

// ParseSelector reads "E1-0", "S2", "东1局0本场" or "南二局".
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if m := latinSelector.FindStringSubmatch(raw); m != nil {
		kyoku := latinWinds[strings.ToLower(m[1])]*4 + int(m[2][0]-'1')
		return withHonba(kyoku, m[3], strconv.Atoi)
	}
	if m := hanSelector.FindStringSubmatch(raw); m != nil {
		n, err := decodeHanInt(m[2])
		if err != nil {
			return Selector{}, common.InvalidInputf("bad round number in %q", raw)
		}
		return withHonba(hanWinds[m[1]]*4+n-1, m[3], decodeHanInt)
	}
	return Selector{}, common.InvalidInputf("unrecognised round %q, expected e.g. E1-0 or 东1局0本场", raw)
}

func withHonba(kyoku int, honba string, parse func(string) (int, error)) (Selector, error) {
	if honba == "" {
		return Selector{Kyoku: kyoku}, nil
	}
	n, err := parse(honba)
	if err != nil {
		return Selector{}, common.InvalidInputf("bad honba %q", honba)
	}
	return Exact(kyoku, n), nil
}

var hanDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// decodeHanInt accepts arabic digits or Chinese numerals below one hundred.
func decodeHanInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	total, cur, seen := 0, -1, false
	for _, r := range s {
		switch {
		case r == '十':
			if cur < 0 {
				cur = 1
			}
			total += cur * 10
			cur = -1
		case r >= '0' && r <= '9':
			cur = int(r - '0')
		default:
			d, ok := hanDigits[r]
			if !ok {
				return 0, fmt.Errorf("not a number: %q", s)
			}
			cur = d
		}
		seen = true
	}
	if !seen {
		return 0, fmt.Errorf("empty number")
	}
	if cur > 0 {
		total += cur
	}
	return total, nil
}
