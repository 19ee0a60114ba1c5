package usecase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	greetingNameRegex = regexp.MustCompile(`(?i)(?:hi|hello|hey)\s*(?:i['’]m|my name is)\s*([a-z]+)`)
	offerRegex        = regexp.MustCompile(`\$?(\d+)`)

	gratitudePhrases = []string{"thank you", "thanks", "appreciate it"}
	inquiryPhrases   = []string{"what's your best price", "interested in buying", "best price", "price for"}
)

// ExtractName returns the name introduced in a greeting such as "hi, I'm Alex".
func ExtractName(text string) (string, bool) {
	m := greetingNameRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractOffer returns the first run of digits in text, optionally prefixed by "$".
// Only the first number counts: "between 85 and 90" yields 85, and "$1,200" yields 1.
func ExtractOffer(text string) (float64, bool) {
	m := offerRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	// Digit runs too long for a float64 come back as +Inf with ErrRange; they are
	// still offers.
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

func DetectGratitude(text string) bool {
	return containsAny(text, gratitudePhrases)
}

func DetectGeneralInquiry(text string) bool {
	return containsAny(strings.ReplaceAll(text, "’", "'"), inquiryPhrases)
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
