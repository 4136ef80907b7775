package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"cyclescan/internal/model"
)

// ErrMalformedVerdict is returned when the judge answers with something that
// is not a usable verdict.
var ErrMalformedVerdict = errors.New("malformed verdict")

// Verdict is the judge's decision about one opportunity.
type Verdict struct {
	ShouldAlert bool
	Message     string
}

// Judge decides whether an opportunity is worth an alert.
type Judge interface {
	Assess(ctx context.Context, opp model.Opportunity) (Verdict, error)
}

// StaticJudge alerts on every opportunity it is shown. It stands in when no
// judge service is configured.
type StaticJudge struct{}

func (StaticJudge) Assess(_ context.Context, opp model.Opportunity) (Verdict, error) {
	return Verdict{
		ShouldAlert: true,
		Message:     fmt.Sprintf("%s returns %.4f%% after fees (%s)", opp.PathDescription, opp.PercentReturn, opp.LegsDescription),
	}, nil
}

type judgeRequest struct {
	ArbitragePath   string  `json:"arbitragePath"`
	PotentialProfit float64 `json:"potentialProfit"`
	BidAskPrices    string  `json:"bidAskPrices"`
}

type judgeResponse struct {
	ShouldAlert  *bool  `json:"shouldAlert"`
	AlertMessage string `json:"alertMessage"`
}

// BreakerSettings tune the circuit breaker around the judge service.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// HTTPJudge asks a remote service for a verdict. Calls go through a circuit
// breaker so a failing service is not hammered on every tick.
type HTTPJudge struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPJudge creates an HTTPJudge posting to url.
func NewHTTPJudge(url string, timeout time.Duration, bs BreakerSettings) *HTTPJudge {
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = 3
	}
	st := gobreaker.Settings{
		Name:    "alert-judge",
		Timeout: bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
	}
	return &HTTPJudge{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Assess posts the opportunity and decodes the verdict.
func (j *HTTPJudge) Assess(ctx context.Context, opp model.Opportunity) (Verdict, error) {
	out, err := j.breaker.Execute(func() (interface{}, error) {
		return j.call(ctx, opp)
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("judge: %w", err)
	}
	return out.(Verdict), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (j *HTTPJudge) State() string {
	return j.breaker.State().String()
}

func (j *HTTPJudge) call(ctx context.Context, opp model.Opportunity) (Verdict, error) {
	body, err := json.Marshal(judgeRequest{
		ArbitragePath:   opp.PathDescription,
		PotentialProfit: opp.PercentReturn,
		BidAskPrices:    opp.LegsDescription,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Verdict{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var jr judgeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&jr); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if jr.ShouldAlert == nil {
		return Verdict{}, fmt.Errorf("%w: shouldAlert missing", ErrMalformedVerdict)
	}
	if *jr.ShouldAlert && jr.AlertMessage == "" {
		return Verdict{}, fmt.Errorf("%w: alert without message", ErrMalformedVerdict)
	}
	return Verdict{ShouldAlert: *jr.ShouldAlert, Message: jr.AlertMessage}, nil
}
