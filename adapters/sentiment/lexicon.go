// Package sentiment provides polarity scorers for negotiation transcripts.
package sentiment

import (
	"context"
	"math"
	"regexp"
	"strings"
)

var wordRegex = regexp.MustCompile(`[a-z]+(?:'[a-z]+)?`)

// polarity of common sentiment-bearing words, in [-1, 1].
var defaultLexicon = map[string]float64{
	"good": 0.7, "great": 0.8, "excellent": 1, "amazing": 0.6, "awesome": 1,
	"fantastic": 0.4, "love": 0.5, "like": 0.2, "nice": 0.6, "happy": 0.8,
	"glad": 0.5, "fair": 0.7, "reasonable": 0.2, "deal": 0.2, "perfect": 1,
	"wonderful": 1, "pleased": 0.5, "thanks": 0.2, "thank": 0.2, "appreciate": 0.4,
	"best": 1, "better": 0.5, "cool": 0.35, "interested": 0.25, "please": 0.1,
	"bad": -0.7, "terrible": -1, "awful": -1, "horrible": -1, "hate": -0.8,
	"expensive": -0.5, "overpriced": -0.7, "ridiculous": -0.33, "crazy": -0.6,
	"cheap": 0.4, "poor": -0.4, "worst": -1, "disappointed": -0.75, "unfair": -0.5,
	"angry": -0.5, "annoyed": -0.4, "sad": -0.5, "high": 0.16, "steep": -0.3,
	"no": -0.2, "too": -0.1, "waste": -0.2, "scam": -0.8,
}

var intensifiers = map[string]float64{
	"very": 1.3, "really": 1.2, "so": 1.3, "extremely": 1.5, "super": 1.4, "quite": 1.1,
}

var negations = map[string]bool{
	"not": true, "isn't": true, "don't": true, "doesn't": true, "can't": true,
	"won't": true, "wasn't": true, "aren't": true, "didn't": true, "never": true,
}

// negationFactor mirrors the common pattern-analyzer convention: a negated word
// keeps half its strength with the sign flipped.
const negationFactor = -0.5

// Lexicon scores text by averaging the polarity of the words it knows.
type Lexicon struct {
	words map[string]float64
}

func NewLexicon() *Lexicon {
	return &Lexicon{words: defaultLexicon}
}

func (l *Lexicon) ScorePolarity(_ context.Context, text string) (float64, error) {
	tokens := wordRegex.FindAllString(strings.ToLower(strings.ReplaceAll(text, "’", "'")), -1)

	var (
		sum   float64
		count int
	)
	modifier := 1.0
	negated := false
	for _, tok := range tokens {
		if negations[tok] {
			negated = true
			continue
		}
		if m, ok := intensifiers[tok]; ok {
			modifier *= m
			continue
		}
		p, ok := l.words[tok]
		if !ok {
			continue
		}
		p *= modifier
		if negated {
			p *= negationFactor
		}
		sum += p
		count++
		modifier = 1
		negated = false
	}
	if count == 0 {
		return 0, nil
	}
	return clamp(sum / float64(count)), nil
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
