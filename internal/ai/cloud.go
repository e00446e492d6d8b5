package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/park285/chess-platform/internal/rules"
)

// Cloud queries a cloud-eval HTTP endpoint (?fen=...&multiPv=1) and plays the first move of the best line.
type Cloud struct {
	baseURL  string
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
}

type cloudEvalResponse struct {
	FEN   string `json:"fen"`
	Depth int    `json:"depth"`
	PVs   []struct {
		Moves string `json:"moves"`
		CP    *int   `json:"cp,omitempty"`
		Mate  *int   `json:"mate,omitempty"`
	} `json:"pvs"`
}

func NewCloud(baseURL string, timeout time.Duration) *Cloud {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Cloud{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:     &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout, MaxConnsPerHost: 16},
		timeout:  timeout,
		retryMax: 2,
	}
}

func (c *Cloud) Name() string { return "cloud" }

func (c *Cloud) BestMove(ctx context.Context, moves []string) (string, error) {
	b, err := rules.Replay(moves)
	if err != nil {
		return "", err
	}
	if len(b.LegalMoves()) == 0 {
		return "", ErrNoMove
	}

	q := url.Values{}
	q.Set("fen", b.FEN())
	q.Set("multiPv", "1")

	var out cloudEvalResponse
	if err := c.getJSON(ctx, c.baseURL+"?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if len(out.PVs) == 0 {
		return "", fmt.Errorf("cloud eval: empty pvs")
	}
	fields := strings.Fields(out.PVs[0].Moves)
	if len(fields) == 0 {
		return "", fmt.Errorf("cloud eval: empty principal variation")
	}
	return strings.ToLower(fields[0]), nil
}

func (c *Cloud) getJSON(ctx context.Context, uri string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(uri)
	req.Header.Set("Accept", "application/json")

	var lastErr error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
			lastErr = fmt.Errorf("cloud eval request failed: %w", err)
			continue
		}
		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return fmt.Errorf("cloud eval: position not found")
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("cloud eval error: status=%d", status)
			if status < 500 {
				return lastErr
			}
			continue
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode cloud eval: %w", err)
		}
		return nil
	}
	return lastErr
}

func (c *Cloud) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(c.timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}
