// Package router is a thin client for an OpenAI-compatible chat completions
// API. It wraps every logical call with rate limiting, timeouts, retry with
// backoff, and cost accounting, and returns either a decoded response or a
// classified error carrying the full attempt trace.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hexebench/hexebench/internal/budget"
	"github.com/hexebench/hexebench/internal/pricing"
	"github.com/hexebench/hexebench/internal/ratelimit"
	"github.com/hexebench/hexebench/internal/retry"
)

// PriceHeader carries a live combined per-1K-token USD price. When present
// and parseable it takes precedence over the static pricing table.
const PriceHeader = "X-Router-Price"

// RequestKind distinguishes the two call rounds of a benchmark sample.
type RequestKind string

const (
	KindGenerate RequestKind = "generate"
	KindJudge    RequestKind = "judge"
)

// Request is one logical chat call.
type Request struct {
	Kind        RequestKind
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response is a successful call outcome.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Latency          time.Duration
}

// Attempt records the timing and result of a single network attempt.
type Attempt struct {
	Start    time.Time
	Duration time.Duration
	Status   int
	Err      string
}

// CallError is the terminal failure of a call after retries are exhausted.
type CallError struct {
	Kind     retry.Kind
	Attempts int
	Trace    []Attempt
	LastErr  error
}

func (e *CallError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("%s after %d attempts: %v", e.Kind, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("%s after %d attempts", e.Kind, e.Attempts)
}

func (e *CallError) Unwrap() error { return e.LastErr }

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Governor       *ratelimit.Governor
	Policy         *retry.Policy
	Ledger         *budget.Ledger
	Prices         *pricing.Table
}

// Client executes chat calls. Safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	readTimeout time.Duration
	gov         *ratelimit.Governor
	policy      *retry.Policy
	ledger      *budget.Ledger
	prices      *pricing.Table

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a client. Governor, Policy, and Ledger are required; Prices may
// be nil, in which case calls without a live price header cost zero.
func New(opts Options) *Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	read := opts.ReadTimeout
	if read <= 0 {
		read = 90 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: connect}).DialContext,
				TLSHandshakeTimeout: connect,
			},
		},
		readTimeout: read,
		gov:         opts.Governor,
		policy:      opts.Policy,
		ledger:      opts.Ledger,
		prices:      opts.Prices,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat performs one logical call, retrying per the policy. Backoff waits
// happen with no governor permit held; retryable failure counts are tracked
// per kind, matching the policy table. On give-up the returned error is a
// *CallError with the ordered attempt trace.
//
// Cancellation is observed between attempts and during backoff only. An
// attempt already in flight always completes, so an admitted unit of work
// drains instead of surfacing a spurious abort.
func (c *Client) Chat(ctx context.Context, req Request) (*Response, error) {
	var trace []Attempt
	counts := make(map[retry.Kind]int)
	var connStart time.Time

	for {
		res, att, kind, hint, err := c.attempt(ctx, req)
		trace = append(trace, att)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, &CallError{Kind: retry.KindAborted, Attempts: len(trace), Trace: trace, LastErr: err}
		}

		counts[kind]++
		var elapsed time.Duration
		if kind == retry.KindConnection {
			if connStart.IsZero() {
				connStart = att.Start
			}
			elapsed = c.now().Sub(connStart)
		}
		dec := c.policy.NextAction(kind, counts[kind], elapsed)
		if !dec.Retry {
			return nil, &CallError{Kind: kind, Attempts: len(trace), Trace: trace, LastErr: err}
		}
		after := dec.After
		if kind == retry.KindRateLimited && hint > 0 {
			after = hint
			if after > time.Minute {
				after = time.Minute
			}
		}
		if err := c.sleep(ctx, after); err != nil {
			return nil, &CallError{Kind: retry.KindAborted, Attempts: len(trace), Trace: trace, LastErr: err}
		}
	}
}

// attempt performs a single permit-scoped network attempt. hint is the
// server-provided Retry-After delay, zero when absent.
func (c *Client) attempt(ctx context.Context, req Request) (res *Response, att Attempt, kind retry.Kind, hint time.Duration, err error) {
	att.Start = c.now()
	defer func() {
		att.Duration = c.now().Sub(att.Start)
		if err != nil {
			att.Err = err.Error()
		}
	}()

	// Admitted work drains: the permit wait and the network call run to
	// completion even after the run is cancelled. Chat observes
	// cancellation between attempts and during backoff, never mid-call.
	callCtx := context.WithoutCancel(ctx)

	release, err := c.gov.Acquire(callCtx, req.Model)
	if err != nil {
		return nil, att, retry.KindAborted, 0, err
	}
	defer release()

	body, err := json.Marshal(chatPayload{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, att, retry.KindParse, 0, fmt.Errorf("encoding request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(callCtx, c.readTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, att, retry.KindConnection, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, att, retry.Classify(0, err), 0, err
	}
	defer resp.Body.Close()
	att.Status = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind = retry.Classify(resp.StatusCode, nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, perr := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); perr == nil && secs > 0 {
				hint = time.Duration(secs * float64(time.Second))
			}
		}
		return nil, att, kind, hint, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, att, retry.KindParse, 0, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, att, retry.KindParse, 0, fmt.Errorf("response has no choices")
	}
	content := decoded.Choices[0].Message.Content
	if content == nil {
		return nil, att, retry.KindParse, 0, fmt.Errorf("response has no message content")
	}

	cost := c.costFor(req.Model, resp.Header.Get(PriceHeader), decoded.Usage.PromptTokens, decoded.Usage.CompletionTokens)
	c.ledger.Add(cost)

	return &Response{
		Text:             *content,
		PromptTokens:     decoded.Usage.PromptTokens,
		CompletionTokens: decoded.Usage.CompletionTokens,
		CostUSD:          cost,
		Latency:          c.now().Sub(att.Start),
	}, att, "", 0, nil
}

// costFor prefers the live header price; the static table is the fallback.
func (c *Client) costFor(model, header string, promptTokens, completionTokens int) float64 {
	if header != "" {
		price, err := strconv.ParseFloat(header, 64)
		if err == nil {
			return float64(promptTokens+completionTokens) / 1000.0 * price
		}
		log.Printf("warning: unparseable %s header %q, using price table", PriceHeader, header)
	}
	return c.prices.Cost(model, promptTokens, completionTokens)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
