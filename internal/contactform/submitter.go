package contactform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status drives the form's feedback line.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSending Status = "sending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

const DefaultResetDelay = 4 * time.Second

// ErrNotOK is returned when the endpoint answers without {"ok": true}.
var ErrNotOK = errors.New("contact endpoint did not confirm delivery")

// RejectedError is a non-2xx answer from the endpoint.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("contact endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("contact endpoint returned %d: %s", e.StatusCode, e.Reason)
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Submitter posts a Form to the contact endpoint and owns the resulting
// Status. Every Submit cancels the reset left pending by the previous one.
type Submitter struct {
	Endpoint   string
	Client     *http.Client
	ResetDelay time.Duration
	Logger     *zap.Logger

	mu       sync.Mutex
	status   Status
	gen      uint64
	reset    *time.Timer
	onChange []func(Status)
}

func NewSubmitter(endpoint string, client *http.Client, logger *zap.Logger) *Submitter {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		Endpoint:   endpoint,
		Client:     client,
		ResetDelay: DefaultResetDelay,
		Logger:     logger,
		status:     StatusIdle,
	}
}

// OnChange registers fn to observe every status transition. fn is called
// without the submitter's lock held.
func (s *Submitter) OnChange(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Submitter) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" {
		return StatusIdle
	}
	return s.status
}

// Submit sends one POST with the form's values. On success the form is
// cleared; on failure it is left intact. Either way the status returns to
// idle after ResetDelay unless another Submit starts first.
func (s *Submitter) Submit(ctx context.Context, form *Form) error {
	gen := s.begin()

	err := s.send(ctx, form.Payload())
	if err != nil {
		s.Logger.Error("Submit error", zap.Error(err))
		s.finish(gen, StatusError, nil)
		return err
	}

	s.finish(gen, StatusSuccess, form)
	return nil
}

func (s *Submitter) begin() uint64 {
	s.mu.Lock()
	if s.reset != nil {
		s.reset.Stop()
		s.reset = nil
	}
	s.gen++
	gen := s.gen
	s.status = StatusSending
	fns := s.onChange
	s.mu.Unlock()

	notify(fns, StatusSending)
	return gen
}

// finish records the terminal status for gen, clears form if given, and
// schedules the reset. A newer submission owns the status and the form's
// contents, so a stale finish touches neither.
func (s *Submitter) finish(gen uint64, status Status, form *Form) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if form != nil {
		form.Reset()
	}
	s.status = status
	fns := s.onChange
	s.mu.Unlock()

	notify(fns, status)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	delay := s.ResetDelay
	if delay <= 0 {
		delay = DefaultResetDelay
	}
	s.reset = time.AfterFunc(delay, func() { s.toIdle(gen) })
}

func (s *Submitter) toIdle(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	s.reset = nil
	fns := s.onChange
	s.mu.Unlock()

	notify(fns, StatusIdle)
}

func notify(fns []func(Status), status Status) {
	for _, fn := range fns {
		fn(status)
	}
}

func (s *Submitter) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{StatusCode: resp.StatusCode, Reason: out.Error}
	}
	if !out.OK {
		return ErrNotOK
	}
	return nil
}
