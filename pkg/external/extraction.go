package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bioeq-design-server/internal/domain"
)

// ErrNotConfigured is returned when the extraction endpoint has no credentials.
var ErrNotConfigured = errors.New("extraction client not configured")

// ExtractionConfig contains configuration for the completion endpoint used for extraction
type ExtractionConfig struct {
	BaseURL     string
	APIKey      string
	FolderID    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   int
}

// ExtractionClient extracts pharmacokinetic parameters from abstracts with a hosted
// language model completion API.
type ExtractionClient struct {
	config     ExtractionConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewExtractionClient creates a new extraction client
func NewExtractionClient(config ExtractionConfig, logger *logrus.Logger) *ExtractionClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	}
	if config.Model == "" {
		config.Model = "aliceai-llm/latest"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 500
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ExtractionClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

type completionMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []completionMessage `json:"messages"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message completionMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

const generalPrompt = `Extract pharmacokinetic parameters of %s reported for healthy volunteers.
Use units: Cmax ng/mL, AUC ng*h/mL, Tmax h, T1/2 h, CV_intra %% (intra-subject variability only, never inter-subject).
Answer with a JSON object only, keys Cmax, AUC, Tmax, T1/2, CV_intra, each either null or
{"value": <number>, "unit": "<unit>", "found": true, "converted": <true if units were converted>}.`

const cvOnlyPrompt = `Extract only the intra-subject (within-subject) coefficient of variation of %s.
Ignore inter-subject or between-subject variability.
Answer with a JSON object only: {"CV_intra": {"value": <number>, "unit": "%%", "found": true, "converted": false}}
or {"CV_intra": null} when it is not reported.`

// Extract asks the model for parameter candidates found in text. A reply that is not a
// JSON object yields an empty mapping rather than an error.
func (c *ExtractionClient) Extract(ctx context.Context, text, substance string, mode domain.ExtractionMode) (map[string]*domain.RawCandidate, error) {
	if c.config.APIKey == "" || c.config.FolderID == "" {
		return nil, ErrNotConfigured
	}

	system := fmt.Sprintf(generalPrompt, substance)
	user := "Abstract:\n\n" + text
	if mode == domain.ModeCVOnly {
		system = fmt.Sprintf(cvOnlyPrompt, substance)
	}

	reply, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	candidates, err := ParseCandidates(reply)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"mode":  mode,
			"reply": truncate(reply, 150),
			"error": err,
		}).Warn("Extraction reply is not a JSON object")
		return map[string]*domain.RawCandidate{}, nil
	}
	return candidates, nil
}

// complete sends one completion request and returns the first alternative text.
func (c *ExtractionClient) complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var payload completionRequest
	payload.ModelURI = fmt.Sprintf("gpt://%s/%s", c.config.FolderID, c.config.Model)
	payload.CompletionOptions.Temperature = c.config.Temperature
	payload.CompletionOptions.MaxTokens = c.config.MaxTokens
	payload.Messages = []completionMessage{
		{Role: "system", Text: system},
		{Role: "user", Text: user},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.config.APIKey)
	req.Header.Set("x-folder-id", c.config.FolderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Service: "extraction model", StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var completion completionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("decoding completion response: %v: %w", err, ErrMalformedResponse)
	}
	if len(completion.Result.Alternatives) == 0 {
		return "", nil
	}
	return completion.Result.Alternatives[0].Message.Text, nil
}

// ParseCandidates decodes a model reply into raw candidates keyed by the names the
// model used. Code fences are stripped; null or non-object entries become nil candidates.
func ParseCandidates(reply string) (map[string]*domain.RawCandidate, error) {
	text := stripCodeFence(reply)
	if text == "" {
		return map[string]*domain.RawCandidate{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedResponse)
	}

	out := make(map[string]*domain.RawCandidate, len(raw))
	for name, msg := range raw {
		trimmed := bytes.TrimSpace(msg)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			out[name] = nil
			continue
		}
		candidateDec := json.NewDecoder(bytes.NewReader(trimmed))
		candidateDec.UseNumber()
		var candidate domain.RawCandidate
		if err := candidateDec.Decode(&candidate); err != nil {
			out[name] = nil
			continue
		}
		out[name] = &candidate
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		} else {
			s = s[3:]
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}
	return strings.TrimSpace(s)
}
