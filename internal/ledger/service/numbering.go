package service

import (
	"fmt"
	"strings"
)

// TokenNumber builds the printed token number: the operator's username in
// upper case followed by the day's sequence, zero-padded to two digits.
// Sequences past 99 keep their natural width (JDOE100): the suffix is
// derived from the counter, never capped and never checked against
// previously printed numbers.
func TokenNumber(username string, dailySeq int) string {
	return fmt.Sprintf("%s%02d", strings.ToUpper(username), dailySeq)
}
