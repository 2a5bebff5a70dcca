package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultWikiBaseURL  = "https://en.wikipedia.org/api/rest_v1"
	defaultWikiTimeout  = 5 * time.Second
	defaultCacheTTL     = 30 * time.Minute
	maxSummarySentences = 10
)

var (
	whatIfPrefix  = regexp.MustCompile(`(?i)^what\s+if\s+`)
	sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)
)

// WikiTool fetches a short neutral background summary for a topic from the
// Wikipedia REST API. Lookups are best-effort: timeouts, missing pages, and
// transport failures all degrade to a valid empty-summary result so the loop
// always receives a ToolResult.
type WikiTool struct {
	baseURL    string
	httpClient *http.Client
	cache      *TTLCache
	cacheTTL   time.Duration
}

// WikiOption configures a WikiTool.
type WikiOption func(*WikiTool)

// WithWikiBaseURL overrides the API base URL (used in tests).
func WithWikiBaseURL(base string) WikiOption {
	return func(t *WikiTool) { t.baseURL = strings.TrimSuffix(base, "/") }
}

// WithWikiTimeout overrides the per-lookup timeout.
func WithWikiTimeout(d time.Duration) WikiOption {
	return func(t *WikiTool) { t.httpClient.Timeout = d }
}

// WithWikiCacheTTL overrides how long summaries are cached.
func WithWikiCacheTTL(d time.Duration) WikiOption {
	return func(t *WikiTool) { t.cacheTTL = d }
}

// NewWikiTool creates the grounding lookup tool.
func NewWikiTool(opts ...WikiOption) *WikiTool {
	t := &WikiTool{
		baseURL:    defaultWikiBaseURL,
		httpClient: &http.Client{Timeout: defaultWikiTimeout},
		cache:      NewTTLCache(),
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *WikiTool) Name() string { return "wiki_summary" }

func (t *WikiTool) Description() string {
	return "Fetch a short neutral background summary for a topic, to ground assumptions before forecasting."
}

func (t *WikiTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{
				"type":        "string",
				"description": "The topic to look up",
			},
			"sentences": map[string]any{
				"type":        "integer",
				"description": "How many sentences to keep (default 3)",
			},
		},
		"required": []string{"topic"},
	}
}

// wikiResult is the payload handed back to the model. OK is false for
// degraded results; Summary is then empty but the shape stays valid.
type wikiResult struct {
	Topic   string `json:"topic"`
	OK      bool   `json:"ok"`
	Summary string `json:"summary"`
	Source  string `json:"source,omitempty"`
	Note    string `json:"note,omitempty"`
}

func (t *WikiTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	topic := strings.TrimSpace(GetString(params, "topic", ""))
	sentences := GetInt(params, "sentences", 3)
	if sentences < 1 {
		sentences = 1
	}
	if sentences > maxSummarySentences {
		sentences = maxSummarySentences
	}
	if topic == "" {
		err := &InvalidArgumentError{Tool: t.Name(), Reason: "topic is required"}
		return fmt.Sprintf("Error: %v", err), nil
	}

	cacheKey := fmt.Sprintf("%s|%d", strings.ToLower(topic), sentences)
	if cached, ok := t.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	res := t.lookup(ctx, topic, sentences)
	out, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("marshal wiki result: %w", err)
	}
	if res.OK {
		t.cache.Set(cacheKey, string(out), t.cacheTTL)
	}
	return string(out), nil
}

func (t *WikiTool) lookup(ctx context.Context, topic string, sentences int) wikiResult {
	title := normalizeTopic(topic)
	endpoint := t.baseURL + "/page/summary/" + url.PathEscape(title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return degradedResult(topic, fmt.Sprintf("request error: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return degradedResult(topic, fmt.Sprintf("lookup failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		nf := &NotFoundError{Topic: topic}
		return degradedResult(topic, nf.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return degradedResult(topic, fmt.Sprintf("lookup returned status %d", resp.StatusCode))
	}

	var body struct {
		Extract string `json:"extract"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return degradedResult(topic, fmt.Sprintf("decode failed: %v", err))
	}
	if strings.TrimSpace(body.Extract) == "" {
		nf := &NotFoundError{Topic: topic}
		return degradedResult(topic, nf.Error())
	}

	return wikiResult{
		Topic:   topic,
		OK:      true,
		Summary: firstSentences(body.Extract, sentences),
		Source:  endpoint,
	}
}

// degradedResult builds the neutral "no grounding available" payload used
// whenever a lookup cannot succeed.
func degradedResult(topic, note string) wikiResult {
	return wikiResult{Topic: topic, OK: false, Summary: "", Note: note}
}

// normalizeTopic strips question phrasing so "What if X was never invented?"
// looks up X's article.
func normalizeTopic(topic string) string {
	s := strings.TrimSpace(strings.TrimSuffix(topic, "?"))
	s = whatIfPrefix.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, " ", "_")
}

func firstSentences(text string, n int) string {
	parts := sentenceSplit.Split(text, -1)
	if len(parts) <= n {
		return text
	}
	// Re-join keeping terminal punctuation by slicing the original text up
	// to the nth boundary.
	locs := sentenceSplit.FindAllStringIndex(text, n)
	if len(locs) < n {
		return text
	}
	return strings.TrimSpace(text[:locs[n-1][0]+1])
}
