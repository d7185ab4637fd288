package detection

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/image-cropper/pkg/types"
)

var fallbackBox = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// Parse decodes a model answer. When the answer holds no decodable JSON
// object it returns the centered fallback and false.
func Parse(raw string) (*types.AnalysisResult, bool) {
	raw = Sanitize(raw)
	if !strings.HasPrefix(raw, "{") {
		return fallback("model returned non-JSON response"), false
	}
	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback("failed to parse model response"), false
	}
	return &result, true
}

// Sanitize strips code fences, comments and trailing commas, and keeps only
// the outermost JSON object.
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func fallback(description string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label: "none",
			Box:   fallbackBox,
			Cx:    0.5,
			Cy:    0.5,
		},
		Description: description,
		Tags:        []string{"fallback"},
	}
}
