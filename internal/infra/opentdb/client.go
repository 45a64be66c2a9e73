// Package opentdb fetches multiple-choice questions from the Open Trivia DB API.
package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trivia-quiz/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://opentdb.com"
	// DefaultMinInterval matches the provider's one request per 5 seconds per IP.
	DefaultMinInterval = 5 * time.Second
)

// Client implements app.QuestionSource against Open Trivia DB. It never retries.
type Client struct {
	baseURL    string
	amount     int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithAmount(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.amount = n
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMinInterval spaces requests at least d apart. Zero disables throttling.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		amount:     domain.QuestionsPerSession,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []apiQuestion `json:"results"`
}

type apiQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Fetch requests the configured number of multiple-choice questions.
// Transport problems match domain.ErrTransport; a parsed response with a
// non-zero response code or no results matches domain.ErrProvider.
func (c *Client) Fetch(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error) {
	log := c.log.With(zap.String("difficulty", string(difficulty)))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.FetchError{Kind: domain.FetchTransport, Err: fmt.Errorf("throttle: %w", err)}
		}
	}

	endpoint := c.endpoint(difficulty)
	log.Debug("fetching questions", zap.String("url", endpoint))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("request failed", zap.Error(err))
		return nil, &domain.FetchError{Kind: domain.FetchTransport, Err: err}
	}
	defer resp.Body.Close()

	log.Debug("response received", zap.Duration("took", time.Since(start)), zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("unexpected status", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, &domain.FetchError{Kind: domain.FetchTransport, Code: resp.StatusCode}
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Error("decode response", zap.Error(err))
		return nil, &domain.FetchError{Kind: domain.FetchTransport, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.ResponseCode != domain.CodeSuccess || len(out.Results) == 0 {
		code := out.ResponseCode
		if code == domain.CodeSuccess {
			code = domain.CodeNoResults
		}
		log.Warn("provider refused", zap.Int("response_code", code), zap.String("reason", domain.ProviderCodeText(code)))
		return nil, &domain.FetchError{Kind: domain.FetchProvider, Code: code}
	}

	questions := make([]domain.Question, 0, len(out.Results))
	for _, r := range out.Results {
		questions = append(questions, domain.Question{
			Category:         r.Category,
			Text:             r.Question,
			CorrectAnswer:    r.CorrectAnswer,
			IncorrectAnswers: append([]string(nil), r.IncorrectAnswers...),
		})
	}
	log.Info("fetched questions", zap.Int("count", len(questions)))
	return questions, nil
}

func (c *Client) endpoint(difficulty domain.Difficulty) string {
	q := url.Values{}
	q.Set("amount", strconv.Itoa(c.amount))
	q.Set("difficulty", string(difficulty))
	q.Set("type", "multiple")
	return c.baseURL + "/api.php?" + q.Encode()
}
