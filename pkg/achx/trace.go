// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"fmt"
	"hash/fnv"
	"unicode/utf8"
)

// TraceNumber returns the 15 digit trace number of a debit: the ODFI's ABA8 followed by
// seven digits derived from referenceID. A payment resubmitted under the same reference
// keeps its trace number.
func TraceNumber(routingNumber, referenceID string) string {
	h := fnv.New64a()
	h.Write([]byte(referenceID))
	return fmt.Sprintf("%s%07d", ABA8(routingNumber), h.Sum64()%1e7)
}

// ABA8 returns the first 8 digits of an ABA routing number.
// If the input is invalid then an empty string is returned.
func ABA8(rtn string) string {
	digits := routingDigits(rtn)
	if digits == "" {
		return ""
	}
	return digits[:8]
}

// ABACheckDigit returns the last digit of an ABA routing number.
// If the input is invalid then an empty string is returned.
func ABACheckDigit(rtn string) string {
	digits := routingDigits(rtn)
	if len(digits) != 9 {
		return ""
	}
	return digits[8:]
}

// routingDigits drops the leading character of 10 digit routing numbers, which the
// Fed prefixes with a space, 0, or 1.
func routingDigits(rtn string) string {
	switch utf8.RuneCountInString(rtn) {
	case 10:
		return rtn[1:]
	case 8, 9:
		return rtn
	}
	return ""
}
