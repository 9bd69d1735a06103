package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// supportedKnowledgeTypes are the file extensions treated as knowledge sources
var supportedKnowledgeTypes = []string{"pdf", "docx", "txt", "md", "json", "csv", "xlsx", "yaml", "yml"}

// readableKnowledgeTypes have their content parsed; the rest contribute only their name
var readableKnowledgeTypes = map[string]bool{"txt": true, "md": true, "json": true, "csv": true, "yaml": true, "yml": true}

var (
	knowledgeNameKeywords = []string{"fashion", "style", "guide", "manual", "knowledge", "info"}
	knowledgeDirKeywords  = []string{"docs", "knowledge", "data", "info"}
)

// maxKnowledgeFileSize bounds how much of a file is read for analysis
const maxKnowledgeFileSize = 4 << 20

// KnowledgeFile describes one detected file
type KnowledgeFile struct {
	FilePath   string    `json:"file_path"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human"`
	Modified   time.Time `json:"modified"`
	Confidence float64   `json:"confidence"`
}

func fileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// knowledgeConfidence estimates how likely a file holds fashion knowledge
// from its extension, name, size and parent directory
func knowledgeConfidence(path string, size int64) float64 {
	conf := 0.0
	if contains(supportedKnowledgeTypes, fileType(path)) {
		conf += 0.3
	}

	name := strings.ToLower(filepath.Base(path))
	for _, kw := range knowledgeNameKeywords {
		if strings.Contains(name, kw) {
			conf += 0.2
			break
		}
	}

	if size > 1024 {
		conf += 0.2
	}
	if size > 10240 {
		conf += 0.1
	}

	parent := strings.ToLower(filepath.Base(filepath.Dir(path)))
	for _, kw := range knowledgeDirKeywords {
		if strings.Contains(parent, kw) {
			conf += 0.2
			break
		}
	}
	return min(1, conf)
}

func describeFile(path string, info fs.FileInfo) KnowledgeFile {
	return KnowledgeFile{
		FilePath:   path,
		Name:       info.Name(),
		Type:       fileType(path),
		Size:       info.Size(),
		SizeHuman:  humanize.Bytes(uint64(info.Size())),
		Modified:   info.ModTime().UTC(),
		Confidence: knowledgeConfidence(path, info.Size()),
	}
}

// walkKnowledgeFiles visits regular files under root whose type is in types
func walkKnowledgeFiles(root string, recursive bool, types []string, visit func(KnowledgeFile)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !contains(types, fileType(path)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(describeFile(path, info))
		return nil
	})
}

// detectKnowledgeFiles returns files of the requested types above the
// knowledge-confidence threshold
func detectKnowledgeFiles(root string, types []string) ([]KnowledgeFile, error) {
	var found []KnowledgeFile
	err := walkKnowledgeFiles(root, true, types, func(f KnowledgeFile) {
		if f.Confidence > 0.3 {
			found = append(found, f)
		}
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return found, nil
}

// readKnowledgeFile returns analyzable text. Structured documents are
// flattened to their keys and string values; binary formats fall back to the
// file name.
func readKnowledgeFile(path string) (string, error) {
	typ := fileType(path)
	if !readableKnowledgeTypes[typ] {
		return filepath.Base(path), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxKnowledgeFileSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch typ {
	case "yaml", "yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("failed to parse yaml %s: %w", path, err)
		}
		return flattenText(doc), nil
	case "json":
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("failed to parse json %s: %w", path, err)
		}
		return flattenText(doc), nil
	case "csv":
		return strings.ReplaceAll(string(raw), ",", " "), nil
	}
	return string(raw), nil
}

// flattenText joins map keys and scalar values depth first, keys sorted
func flattenText(v interface{}) string {
	var parts []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				parts = append(parts, strings.ReplaceAll(k, "_", " "))
				walk(t[k])
			}
		case []interface{}:
			for _, e := range t {
				walk(e)
			}
		case nil:
		default:
			parts = append(parts, fmt.Sprint(t))
		}
	}
	walk(v)
	return strings.Join(parts, " ")
}

// Categorization is the result of classifying a document
type Categorization struct {
	Category   string         `json:"category"`
	Confidence float64        `json:"confidence"`
	Keywords   []string       `json:"keywords"`
	AllScores  map[string]int `json:"all_scores,omitempty"`
}

// ConceptExtraction holds concepts grouped by type
type ConceptExtraction struct {
	Concepts   map[string][]string `json:"concepts"`
	KeyPhrases []string            `json:"key_phrases"`
	Entities   []Entity            `json:"entities"`
	Topics     []string            `json:"topics"`
	Confidence float64             `json:"confidence"`
}

// Entity is a capitalized token that likely names a brand or place
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// KnowledgeAnalyzer classifies documents and extracts their concepts
type KnowledgeAnalyzer interface {
	Categorize(content string) Categorization
	ExtractConcepts(content string) ConceptExtraction
}

type keywordCategory struct {
	name     string
	keywords []string
}

var documentCategories = []keywordCategory{
	{"fashion_guide", []string{"fashion", "style", "clothing", "outfit", "trend"}},
	{"color_theory", []string{"color", "palette", "hue", "shade", "matching"}},
	{"body_type", []string{"body", "figure", "shape", "silhouette", "fit"}},
	{"seasonal", []string{"season", "winter", "summer", "spring", "fall", "autumn"}},
	{"cultural", []string{"culture", "traditional", "ethnic", "cultural", "heritage"}},
	{"brand_info", []string{"brand", "designer", "luxury", "collection", "label"}},
	{"care_instructions", []string{"care", "wash", "clean", "maintenance", "storage"}},
	{"size_guide", []string{"size", "measurement", "fit", "chart", "dimension"}},
}

type conceptPattern struct {
	kind  string
	words []string
	re    *regexp.Regexp
}

func newConceptPattern(kind string, words ...string) conceptPattern {
	return conceptPattern{
		kind:  kind,
		words: words,
		re:    regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`),
	}
}

var conceptPatterns = []conceptPattern{
	newConceptPattern("fashion_items", "dress", "shirt", "pants", "skirt", "jacket", "coat", "shoes", "bag", "accessory"),
	newConceptPattern("colors", "red", "blue", "green", "yellow", "orange", "purple", "pink", "black", "white", "gray", "brown"),
	newConceptPattern("materials", "cotton", "silk", "wool", "leather", "denim", "linen", "polyester", "cashmere"),
	newConceptPattern("styles", "casual", "formal", "business", "elegant", "sporty", "vintage", "modern", "classic"),
	newConceptPattern("seasons", "spring", "summer", "fall", "autumn", "winter"),
}

// KeywordKnowledgeAnalyzer scores categories by keyword frequency and
// extracts concepts from fixed vocabularies
type KeywordKnowledgeAnalyzer struct{}

// Categorize picks the category with the most keyword occurrences. Ties go
// to the category listed first.
func (KeywordKnowledgeAnalyzer) Categorize(content string) Categorization {
	if strings.TrimSpace(content) == "" {
		return Categorization{Category: "unknown", Keywords: []string{}}
	}

	lower := strings.ToLower(content)
	scores := map[string]int{}
	matched := map[string][]string{}
	best := ""
	for _, cat := range documentCategories {
		score := 0
		for _, kw := range cat.keywords {
			if n := strings.Count(lower, kw); n > 0 {
				score += n
				matched[cat.name] = append(matched[cat.name], kw)
			}
		}
		if score == 0 {
			continue
		}
		scores[cat.name] = score
		if best == "" || score > scores[best] {
			best = cat.name
		}
	}

	if best == "" {
		return Categorization{Category: "general", Confidence: 0.3, Keywords: []string{}}
	}

	words := max(1, len(strings.Fields(content)))
	return Categorization{
		Category:   best,
		Confidence: min(0.98, 0.5+float64(scores[best])/float64(words)*10),
		Keywords:   matched[best],
		AllScores:  scores,
	}
}

// ExtractConcepts finds vocabulary matches, keyword phrases and capitalized entities
func (KeywordKnowledgeAnalyzer) ExtractConcepts(content string) ConceptExtraction {
	out := ConceptExtraction{
		Concepts:   map[string][]string{},
		KeyPhrases: []string{},
		Entities:   []Entity{},
		Topics:     []string{},
	}
	if strings.TrimSpace(content) == "" {
		return out
	}

	lower := strings.ToLower(content)
	total := 0
	for _, p := range conceptPatterns {
		if matches := uniq(p.re.FindAllString(lower, -1)); len(matches) > 0 {
			out.Concepts[p.kind] = matches
			out.Topics = append(out.Topics, p.kind)
			total += len(matches)
		}
	}

	out.KeyPhrases = keyPhrases(lower)
	out.Entities = capitalizedEntities(content)

	density := float64(total) / float64(max(1, len(strings.Fields(content))))
	out.Confidence = min(0.95, 0.3+density*20)
	return out
}

// keyPhrases returns up to ten adjacent long-word pairs that mention a concept
func keyPhrases(lower string) []string {
	words := strings.Fields(lower)
	var phrases []string
	for i := 0; i+1 < len(words); i++ {
		if len(words[i]) <= 3 || len(words[i+1]) <= 3 {
			continue
		}
		phrase := words[i] + " " + words[i+1]
		for _, p := range conceptPatterns {
			if p.re.MatchString(phrase) {
				phrases = append(phrases, phrase)
				break
			}
		}
	}
	phrases = uniq(phrases)
	if len(phrases) > 10 {
		phrases = phrases[:10]
	}
	return phrases
}

func capitalizedEntities(content string) []Entity {
	var out []Entity
	for _, w := range strings.Fields(content) {
		r := []rune(w)
		if len(r) <= 2 || !unicode.IsUpper(r[0]) || strings.IndexFunc(w, func(c rune) bool { return !unicode.IsLetter(c) }) >= 0 {
			continue
		}
		out = append(out, Entity{Text: w, Type: "BRAND", Confidence: 0.7})
		if len(out) == 5 {
			break
		}
	}
	if out == nil {
		return []Entity{}
	}
	return out
}

// conceptCount is the number of concept values across all types
func conceptCount(concepts map[string][]string) int {
	n := 0
	for _, v := range concepts {
		n += len(v)
	}
	return n
}
