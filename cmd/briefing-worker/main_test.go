package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/Beez1/bounceinsights/internal/briefing"
	"github.com/Beez1/bounceinsights/internal/types"
)

// --- Mock Processor ---

type mockProcessor struct {
	mu   sync.Mutex
	jobs []types.BriefingJob
	errs map[string]error
}

func (m *mockProcessor) ProcessJob(_ context.Context, job types.BriefingJob) (briefing.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	if err := m.errs[job.JobID]; err != nil {
		return briefing.Receipt{}, err
	}
	return briefing.Receipt{ReferenceID: "ref-" + job.JobID, Recipient: job.RecipientEmail}, nil
}

func newTestHandler(p JobProcessor) (*Handler, *int) {
	flushes := 0
	return &Handler{
		processor: p,
		flush:     func(context.Context) error { flushes++; return nil },
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &flushes
}

func jobBody(id string) string {
	return `{"job_id":"` + id + `","recipient_email":"ada@example.com","image_url":"https://epic.gsfc.nasa.gov/a.png","date":"2024-06-01"}`
}

func TestHandle_AllSucceed(t *testing.T) {
	proc := &mockProcessor{}
	h, flushes := newTestHandler(proc)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: jobBody("j1"), Attributes: map[string]string{"SentTimestamp": "1717200000000"}},
		{MessageId: "m2", Body: jobBody("j2")},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("expected no failures, got %v", resp.BatchItemFailures)
	}
	if len(proc.jobs) != 2 || proc.jobs[0].Date != "2024-06-01" {
		t.Errorf("unexpected jobs %+v", proc.jobs)
	}
	if *flushes != 1 {
		t.Errorf("expected one metrics flush, got %d", *flushes)
	}
}

func TestHandle_PartialBatchFailure(t *testing.T) {
	proc := &mockProcessor{errs: map[string]error{
		"j2": types.UpstreamError("sendgrid", "SendGrid unavailable", nil),
	}}
	h, _ := newTestHandler(proc)

	resp, _ := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: jobBody("j1")},
		{MessageId: "m2", Body: jobBody("j2")},
		{MessageId: "m3", Body: jobBody("j3")},
	}})

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Errorf("expected only m2 to be retried, got %v", resp.BatchItemFailures)
	}
}

func TestHandle_PermanentFailuresAreAcknowledged(t *testing.T) {
	proc := &mockProcessor{errs: map[string]error{
		"j1": types.ValidationError(types.ErrCodeValidationInvalidDate, "Invalid date format", ""),
	}}
	h, _ := newTestHandler(proc)

	resp, _ := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: jobBody("j1")},
		{MessageId: "m2", Body: `{not json`},
		{MessageId: "m3", Body: `{"job_id":"j3"}`},
	}})

	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("permanent failures must not be retried, got %v", resp.BatchItemFailures)
	}
	if len(proc.jobs) != 1 {
		t.Errorf("only the decodable job reaches the processor, got %d", len(proc.jobs))
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", types.ValidationError(types.ErrCodeValidationInvalidEmail, "bad email", ""), true},
		{"upstream", types.UpstreamError("sendgrid", "down", nil), false},
		{"config", types.ConfigurationError("SENDGRID_API_KEY", "not configured"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermanent(tt.err); got != tt.want {
				t.Errorf("isPermanent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunLocal(t *testing.T) {
	proc := &mockProcessor{}
	h, _ := newTestHandler(proc)

	input := jobBody("j1") + "\n\n" + jobBody("j2") + "\n"
	if err := h.RunLocal(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proc.jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(proc.jobs))
	}
}

func TestRunLocal_ReportsFailures(t *testing.T) {
	proc := &mockProcessor{errs: map[string]error{"j1": errors.New("network down")}}
	h, _ := newTestHandler(proc)

	err := h.RunLocal(context.Background(), strings.NewReader(jobBody("j1")))
	if err == nil || !strings.Contains(err.Error(), "1 of 1") {
		t.Errorf("expected failure summary, got %v", err)
	}
}

func TestParseMillisTimestamp(t *testing.T) {
	ts, err := parseMillisTimestamp("1717200000000")
	if err != nil {
		t.Fatal(err)
	}
	if ts.UTC().Format("2006-01-02") != "2024-06-01" {
		t.Errorf("unexpected time %v", ts)
	}
	if _, err := parseMillisTimestamp("soon"); err == nil {
		t.Error("expected error for non-numeric timestamp")
	}
}
