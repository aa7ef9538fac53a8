package legal

import "strconv"

var hanDigits = map[rune]int{
	'〇': 0, '零': 0, '一': 1, '二': 2, '兩': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var hanUnits = map[rune]int{'十': 10, '百': 100, '千': 1000}

// parseNumber reads an Arabic or Chinese numeral such as 184, 一百八十四
// or 十五. It returns 0 for anything else.
func parseNumber(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	total, digit := 0, -1
	for _, r := range s {
		if d, ok := hanDigits[r]; ok {
			digit = d
			continue
		}
		unit, ok := hanUnits[r]
		if !ok {
			return 0
		}
		if digit < 0 {
			digit = 1
		}
		total += digit * unit
		digit = -1
	}
	if digit > 0 {
		total += digit
	}
	return total
}
