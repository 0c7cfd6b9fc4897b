// Package poller drives a session poll endpoint until the session resolves
// or the client deadline passes.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpclient "judgeflow/internal/cli/http"
	"judgeflow/internal/judging/model"
	appErr "judgeflow/pkg/errors"
)

// Doer issues one HTTP request.
type Doer interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (httpclient.ResponseInfo, error)
}

// Outcome is the last response seen by Wait.
type Outcome struct {
	Response httpclient.ResponseInfo
	Attempts int
	Elapsed  time.Duration
}

type envelope struct {
	Code    appErr.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
}

type progress struct {
	Status   string                 `json:"status"`
	StatusID model.SubmissionStatus `json:"statusId"`
}

// Poller applies one variant policy to a poll path.
type Poller struct {
	client Doer
	policy model.VariantPolicy
}

func New(client Doer, policy model.VariantPolicy) *Poller {
	if policy.PollInterval <= 0 {
		policy.PollInterval = model.DefaultPollInterval
	}
	return &Poller{client: client, policy: policy}
}

// Wait polls path every PollInterval. It returns the first terminal response,
// a ClientTimeout error once ClientDeadline elapses, or the service error
// carried by a non-success envelope.
func (p *Poller) Wait(ctx context.Context, path string) (Outcome, error) {
	var out Outcome
	start := time.Now()
	if p.policy.ClientDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.policy.ClientDeadline)
		defer cancel()
	}

	ticker := time.NewTicker(p.policy.PollInterval)
	defer ticker.Stop()

	for {
		out.Attempts++
		resp, err := p.client.Do(ctx, http.MethodGet, path, nil, nil)
		out.Elapsed = time.Since(start)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return out, p.expired()
			}
			return out, err
		}
		out.Response = resp

		done, err := p.resolved(resp.Body)
		if err != nil || done {
			return out, err
		}

		select {
		case <-ctx.Done():
			out.Elapsed = time.Since(start)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return out, p.expired()
			}
			return out, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) expired() error {
	return appErr.New(appErr.ClientTimeout).
		WithDetail("mode", string(p.policy.Mode)).
		WithDetail("deadline", p.policy.ClientDeadline.String())
}

func (p *Poller) resolved(body []byte) (bool, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("decode poll response failed: %w", err)
	}
	if env.Code != appErr.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Code.Message()
		}
		return false, appErr.New(env.Code).WithMessage(msg)
	}
	var state progress
	if err := json.Unmarshal(env.Data, &state); err != nil {
		return false, fmt.Errorf("decode poll data failed: %w", err)
	}
	return !processing(p.policy.Mode, state), nil
}

// processing reports whether a poll payload still describes in-flight work.
func processing(mode model.Mode, data progress) bool {
	if mode == model.ModeRun {
		return data.Status == model.RunStatusProcessing
	}
	return data.StatusID == model.StatusProcessing
}
