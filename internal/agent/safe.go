package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/models"
)

type outcome struct {
	resp *Response
	err  error
}

// SafeExecute runs an agent under a deadline and converts every failure mode
// into a Response. It never returns nil and never panics.
//
// A timeout yields status timeout, a returned error or panic yields status
// error, and a response with Success false leaves the agent completed. The
// agent's goroutine may outlive the deadline; its result is discarded.
func SafeExecute(ctx context.Context, a Agent, req *Request, timeout time.Duration, limiter *Limiter) *Response {
	start := time.Now()
	setStatus(a, models.AgentStatusProcessing)

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := log.With().
		Str("agent", a.Name()).
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Logger()
	logger.Debug().Str("task", req.TaskDescription).Msg("Processing request")

	if err := limiter.Wait(execCtx, a.Type()); err != nil {
		return finish(failure(a, models.AgentStatusTimeout, fmt.Sprintf("Agent %s timed out", a.Name())), start)
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Agent panicked")
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		resp, err := a.ProcessRequest(execCtx, req)
		done <- outcome{resp: resp, err: err}
	}()

	var resp *Response
	select {
	case out := <-done:
		switch {
		case out.err != nil && errors.Is(out.err, context.DeadlineExceeded):
			resp = failure(a, models.AgentStatusTimeout, fmt.Sprintf("Agent %s timed out", a.Name()))
		case out.err != nil:
			resp = failure(a, models.AgentStatusError, fmt.Sprintf("Agent %s failed: %v", a.Name(), out.err))
		case out.resp == nil:
			resp = failure(a, models.AgentStatusError, fmt.Sprintf("Agent %s failed: empty response", a.Name()))
		default:
			resp = out.resp
			resp.AgentType = a.Type()
			if resp.Confidence != nil {
				resp.Confidence = Confidence(*resp.Confidence)
			}
			// an unsuccessful answer is still a completed request; only
			// errors and panics mark the agent faulted
			if resp.Success || resp.Status == "" || resp.Status == models.AgentStatusProcessing {
				resp.Status = models.AgentStatusCompleted
			}
			setStatus(a, resp.Status)
		}
	case <-execCtx.Done():
		resp = failure(a, models.AgentStatusTimeout, fmt.Sprintf("Agent %s timed out", a.Name()))
	}

	resp = finish(resp, start)
	if resp.Success {
		logger.Debug().Float64("processing_time", resp.ProcessingTime).Msg("Request processed")
	} else {
		logger.Warn().Str("status", string(resp.Status)).Str("message", resp.Message).Msg("Request failed")
	}
	return resp
}

func failure(a Agent, status models.AgentStatus, message string) *Response {
	setStatus(a, status)
	return &Response{
		Success:   false,
		AgentType: a.Type(),
		Status:    status,
		Result:    map[string]interface{}{},
		Message:   message,
		Metadata: map[string]interface{}{
			"agent_name": a.Name(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

func finish(resp *Response, start time.Time) *Response {
	resp.ProcessingTime = time.Since(start).Seconds()
	if resp.Result == nil {
		resp.Result = map[string]interface{}{}
	}
	return resp
}

func setStatus(a Agent, status models.AgentStatus) {
	if s, ok := a.(StatusSetter); ok {
		s.SetStatus(status)
	}
}
