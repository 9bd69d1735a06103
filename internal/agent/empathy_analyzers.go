package agent

import (
	"fmt"
	"strings"
)

type lexiconEntry struct {
	name     string
	keywords []string
}

var moodLexicon = []lexiconEntry{
	{"confident", []string{"confident", "strong", "powerful", "bold", "assertive"}},
	{"anxious", []string{"anxious", "nervous", "worried", "stressed", "uncertain"}},
	{"sad", []string{"sad", "down", "depressed", "blue", "melancholy"}},
	{"happy", []string{"happy", "joyful", "excited", "cheerful", "positive"}},
	{"angry", []string{"angry", "frustrated", "mad", "irritated", "annoyed"}},
	{"calm", []string{"calm", "peaceful", "relaxed", "serene", "tranquil"}},
	{"creative", []string{"creative", "artistic", "expressive", "unique", "original"}},
}

var cultureLexicon = []lexiconEntry{
	{"western", []string{"individual", "personal", "modern", "casual", "freedom"}},
	{"eastern", []string{"harmony", "traditional", "family", "respect", "balance"}},
	{"mediterranean", []string{"warm", "social", "family", "celebration", "community"}},
	{"scandinavian", []string{"minimal", "functional", "clean", "simple", "practical"}},
}

var culturalConsiderations = map[string][]string{
	"western":       {"Individual expression is valued", "Comfort and practicality important"},
	"eastern":       {"Modesty may be preferred", "Harmony in color combinations"},
	"mediterranean": {"Warm colors and social occasions", "Family gatherings consideration"},
	"scandinavian":  {"Minimalist aesthetics", "Functional design preferred"},
}

// MoodAnalysis is the outcome of reading mood from free text
type MoodAnalysis struct {
	PrimaryMood    string         `json:"primary_mood"`
	MoodScores     map[string]int `json:"mood_scores"`
	Confidence     float64        `json:"confidence"`
	TextIndicators []string       `json:"text_indicators"`
}

// CulturalAnalysis is the outcome of reading cultural signals
type CulturalAnalysis struct {
	PrimaryCulture string         `json:"primary_culture"`
	CultureScores  map[string]int `json:"culture_scores"`
	Confidence     float64        `json:"confidence"`
	Considerations []string       `json:"considerations"`
}

// EmpathyScorer produces the heuristic confidences of the empathy agent
type EmpathyScorer interface {
	AnalyzeMood(text string) MoodAnalysis
	AnalyzeCulture(text string) CulturalAnalysis
	EmpathyLevel(rec *EmpatheticRecommendation) float64
}

// LexiconEmpathyScorer scores by keyword hits
type LexiconEmpathyScorer struct{}

// AnalyzeMood counts mood keywords appearing in the text. The first mood
// with the highest count wins; no hits means neutral.
func (LexiconEmpathyScorer) AnalyzeMood(text string) MoodAnalysis {
	lower := strings.ToLower(text)
	scores := make(map[string]int, len(moodLexicon))
	primary, best := "neutral", 0
	for _, m := range moodLexicon {
		n := 0
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		scores[m.name] = n
		if n > best {
			primary, best = m.name, n
		}
	}

	var indicators []string
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?;:\"'()")
		for _, m := range moodLexicon {
			if contains(m.keywords, word) {
				indicators = append(indicators, word)
				break
			}
		}
	}

	confidence := 0.5
	if best > 0 {
		confidence = min(1, float64(best)*0.3)
	}
	return MoodAnalysis{PrimaryMood: primary, MoodScores: scores, Confidence: confidence, TextIndicators: indicators}
}

// AnalyzeCulture counts culture keywords among the words of text, defaulting to western
func (LexiconEmpathyScorer) AnalyzeCulture(text string) CulturalAnalysis {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,!?;:\"'()[]{}")] = true
	}

	scores := make(map[string]int, len(cultureLexicon))
	primary, best := "western", 0
	for _, c := range cultureLexicon {
		n := 0
		for _, kw := range c.keywords {
			if words[kw] {
				n++
			}
		}
		scores[c.name] = n
		if n > best {
			primary, best = c.name, n
		}
	}

	confidence := 0.5
	if best > 0 {
		confidence = min(1, float64(best)*0.25)
	}
	return CulturalAnalysis{
		PrimaryCulture: primary,
		CultureScores:  scores,
		Confidence:     confidence,
		Considerations: considerationsFor(primary),
	}
}

// EmpathyLevel is the mean of four signal-presence factors
func (LexiconEmpathyScorer) EmpathyLevel(rec *EmpatheticRecommendation) float64 {
	factors := make([]float64, 0, 4)

	msg := strings.ToLower(rec.PersonalMessage)
	warm := false
	for _, w := range []string{"understand", "feel", "help", "support"} {
		if strings.Contains(msg, w) {
			warm = true
			break
		}
	}
	if len(rec.PersonalMessage) > 50 && warm {
		factors = append(factors, 0.95)
	} else {
		factors = append(factors, 0.6)
	}

	if len(rec.EmotionalNeeds) > 0 {
		factors = append(factors, 0.9)
	} else {
		factors = append(factors, 0.5)
	}

	if len(rec.SupportiveElements) > 0 {
		factors = append(factors, 0.85)
	} else {
		factors = append(factors, 0.4)
	}

	if len(rec.CulturalConsiderations) > 0 {
		factors = append(factors, 0.8)
	} else {
		factors = append(factors, 0.7)
	}
	return mean(factors)
}

func considerationsFor(culture string) []string {
	if c, ok := culturalConsiderations[culture]; ok {
		return c
	}
	return []string{"General fashion principles apply"}
}

// SupportiveElement is a styling element that answers an emotional need
type SupportiveElement struct {
	Need    string `json:"need"`
	Element string `json:"element"`
	Reason  string `json:"reason"`
}

// EmpatheticRecommendation is the composed empathetic answer for a user
type EmpatheticRecommendation struct {
	PersonalMessage        string              `json:"personal_message"`
	EmotionalNeeds         []string            `json:"emotional_needs"`
	SupportiveElements     []SupportiveElement `json:"supportive_elements"`
	EmpathyTechniques      []string            `json:"empathy_techniques"`
	CulturalConsiderations []string            `json:"cultural_considerations"`
}

var supportiveElements = map[string]SupportiveElement{
	"comfort":     {Element: "Soft textures", Reason: "Tactile comfort can provide emotional soothing"},
	"confidence":  {Element: "Structured silhouettes", Reason: "Well-tailored pieces can enhance self-assurance"},
	"expression":  {Element: "Bold colors or patterns", Reason: "Visual expression can be emotionally liberating"},
	"calm":        {Element: "Neutral color palette", Reason: "Calm colors can help reduce anxiety"},
	"celebration": {Element: "Special details or textures", Reason: "Celebratory elements can enhance positive mood"},
}

func emotionalNeeds(mood string, challenges []string) []string {
	mood = strings.ToLower(mood)
	var needs []string
	switch {
	case strings.Contains(mood, "sad") || strings.Contains(mood, "down"):
		needs = append(needs, "comfort", "warmth", "uplift")
	case strings.Contains(mood, "anxious") || strings.Contains(mood, "nervous"):
		needs = append(needs, "calm", "security", "confidence")
	case strings.Contains(mood, "angry") || strings.Contains(mood, "frustrated"):
		needs = append(needs, "expression", "power", "control")
	case strings.Contains(mood, "excited") || strings.Contains(mood, "happy"):
		needs = append(needs, "celebration", "expression", "joy")
	}

	for _, c := range challenges {
		c = strings.ToLower(c)
		switch {
		case strings.Contains(c, "work"):
			needs = append(needs, "professionalism")
		case strings.Contains(c, "social"):
			needs = append(needs, "social_confidence")
		case strings.Contains(c, "body"):
			needs = append(needs, "body_positivity")
		}
	}
	return uniq(needs)
}

func personalMessage(mood, situation string) string {
	mood = strings.ToLower(mood)
	var b strings.Builder
	switch {
	case strings.Contains(mood, "confident"):
		b.WriteString("I can sense your confidence and strength.")
	case strings.Contains(mood, "anxious"):
		b.WriteString("I understand you're feeling a bit anxious, and that's completely okay.")
	case strings.Contains(mood, "sad"):
		b.WriteString("I hear that you're going through a tough time.")
	case strings.Contains(mood, "excited"), strings.Contains(mood, "happy"):
		b.WriteString("I love your positive energy and excitement!")
	default:
		b.WriteString("I'm here to help you feel your best.")
	}
	if situation != "" {
		fmt.Fprintf(&b, " I understand this %s is important to you.", situation)
	}
	b.WriteString(" Let's find styles that will make you feel amazing and true to yourself.")
	return b.String()
}

func supportiveFor(needs []string) []SupportiveElement {
	var out []SupportiveElement
	for _, n := range needs {
		if e, ok := supportiveElements[n]; ok {
			e.Need = n
			out = append(out, e)
		}
	}
	return out
}

// empathyPatterns map an emotional direction to styling cues
var empathyPatterns = []struct {
	name     string
	keywords []string
	styles   []string
	response string
}{
	{"confidence", []string{"confident", "powerful", "strong", "bold", "assertive"}, []string{"structured", "bold colors", "statement pieces"}, "embrace your inner strength"},
	{"comfort", []string{"comfortable", "cozy", "relaxed", "casual", "easy", "calm"}, []string{"soft fabrics", "loose fit", "neutral colors"}, "prioritize your comfort and well-being"},
	{"creativity", []string{"creative", "artistic", "unique", "expressive", "individual"}, []string{"mixed patterns", "unusual combinations", "artistic pieces"}, "express your unique creative vision"},
	{"professional", []string{"professional", "work", "business", "formal", "serious"}, []string{"tailored fits", "classic colors", "sophisticated"}, "project confidence and competence"},
	{"celebratory", []string{"celebration", "party", "happy", "joy", "festive"}, []string{"bright colors", "elegant", "eye-catching"}, "celebrate this special moment"},
}

func moodRecommendations(mood string) []map[string]interface{} {
	mood = strings.ToLower(mood)
	var out []map[string]interface{}
	for _, p := range empathyPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(mood, kw) {
				out = append(out, map[string]interface{}{
					"category":              p.name,
					"style_elements":        p.styles,
					"empathy_message":       "I understand you want to " + p.response,
					"psychological_benefit": "This will help you feel more " + p.name,
				})
				break
			}
		}
	}
	return out
}

var culturalRecommendations = map[string][]map[string]string{
	"western": {
		{"element": "individualism", "recommendation": "Express personal style boldly"},
		{"element": "practicality", "recommendation": "Focus on versatile pieces"},
	},
	"eastern": {
		{"element": "harmony", "recommendation": "Choose balanced color palettes"},
		{"element": "respect", "recommendation": "Consider modest styling options"},
	},
	"mediterranean": {
		{"element": "warmth", "recommendation": "Embrace warm colors and flowing fabrics"},
		{"element": "family", "recommendation": "Choose styles suitable for social gatherings"},
	},
	"scandinavian": {
		{"element": "simplicity", "recommendation": "Invest in clean, functional staples"},
	},
}

// psychologyInsight is one retrievable piece of fashion psychology
type psychologyInsight struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

type culturalInsight struct {
	Values            []string `json:"values"`
	FashionPsychology []string `json:"fashion_psychology"`
}

// psychologyKnowledgeBase holds mood and cultural insights in lookup order
type psychologyKnowledgeBase struct {
	moods    []string
	mood     map[string]psychologyInsight
	cultures []string
	cultural map[string]culturalInsight
}

func newPsychologyKnowledgeBase() *psychologyKnowledgeBase {
	return &psychologyKnowledgeBase{
		moods: []string{"confident", "anxious", "creative", "sad", "happy"},
		mood: map[string]psychologyInsight{
			"confident": {
				Insights:        []string{"Wearing structured clothing can enhance feelings of confidence", "Bold colors are associated with assertiveness and power"},
				Recommendations: []string{"Choose tailored fits", "Opt for strong colors like red or navy"},
			},
			"anxious": {
				Insights:        []string{"Soft textures can provide emotional comfort", "Neutral colors can help reduce visual stress"},
				Recommendations: []string{"Select comfortable fabrics", "Choose calming color palettes"},
			},
			"creative": {
				Insights:        []string{"Unique combinations foster creative expression", "Artistic elements support creative identity"},
				Recommendations: []string{"Mix patterns boldly", "Include artistic accessories"},
			},
			"sad": {
				Insights:        []string{"Color psychology links warm tones with uplifted mood", "Comfortable fits reduce body image stress"},
				Recommendations: []string{"Add one warm accent color", "Prefer soft, familiar fabrics"},
			},
			"happy": {
				Insights:        []string{"Bright palettes amplify positive affect", "Playful details invite self-expression"},
				Recommendations: []string{"Try a bright statement piece", "Experiment with playful patterns"},
			},
		},
		cultures: []string{"western", "eastern"},
		cultural: map[string]culturalInsight{
			"western": {
				Values:            []string{"individualism", "self-expression", "practicality"},
				FashionPsychology: []string{"Personal style as identity marker", "Comfort prioritized"},
			},
			"eastern": {
				Values:            []string{"harmony", "respect", "balance"},
				FashionPsychology: []string{"Collective consideration", "Modesty as respect"},
			},
		},
	}
}

func (kb *psychologyKnowledgeBase) moodInsights(mood string) psychologyInsight {
	if in, ok := kb.mood[mood]; ok {
		return in
	}
	return psychologyInsight{
		Insights:        []string{"Fashion can influence and reflect emotional states"},
		Recommendations: []string{"Choose styles that align with desired feelings"},
	}
}

func (kb *psychologyKnowledgeBase) culturalInsights(culture string) culturalInsight {
	if in, ok := kb.cultural[culture]; ok {
		return in
	}
	return culturalInsight{
		Values:            []string{"universal fashion principles"},
		FashionPsychology: []string{"Fashion as cultural expression"},
	}
}

// retrieve returns insights whose mood or culture is named in the query
func (kb *psychologyKnowledgeBase) retrieve(query string) []map[string]interface{} {
	q := strings.ToLower(query)
	var out []map[string]interface{}
	for _, m := range kb.moods {
		if strings.Contains(q, m) {
			out = append(out, map[string]interface{}{
				"source":          "mood_psychology_" + m,
				"content":         fmt.Sprintf("Mood research on %s: %s", m, strings.Join(kb.mood[m].Insights, " ")),
				"relevance_score": 0.9,
			})
		}
	}
	for _, c := range kb.cultures {
		if strings.Contains(q, c) {
			out = append(out, map[string]interface{}{
				"source":          "cultural_psychology_" + c,
				"content":         fmt.Sprintf("Cultural research on %s: %s", c, strings.Join(kb.cultural[c].FashionPsychology, " ")),
				"relevance_score": 0.8,
			})
		}
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func (kb *psychologyKnowledgeBase) healthy() bool {
	return len(kb.mood) > 0 && len(kb.cultural) > 0
}

var insightThemes = []struct {
	phrase string
	theme  string
	advice string
}{
	{"color psychology", "color_psychology", "Consider how colors affect your mood and others' perceptions"},
	{"body image", "body_image", "Choose styles that make you feel comfortable and confident"},
	{"self-expression", "self_expression", "Use fashion as a tool for authentic self-expression"},
}

var emotionalTechniques = map[string][]string{
	"confident":    {"structured_silhouettes", "bold_colors", "statement_accessories"},
	"calm":         {"soft_textures", "neutral_colors", "flowing_fabrics"},
	"creative":     {"mixed_patterns", "unique_pieces", "artistic_elements"},
	"professional": {"tailored_fits", "classic_colors", "minimal_jewelry"},
	"joyful":       {"bright_colors", "playful_patterns", "comfortable_fits"},
}
