// Package main is the entry point for the briefing worker Lambda function.
//
// The worker consumes BriefingJobs from the briefing SQS queue that the API
// fills when asynchronous briefings are enabled. Each job is rendered and
// sent through the same dispatcher the API uses for synchronous briefings.
//
// Handler flow, for each SQS message in the batch:
//  1. Decode the BriefingJob from the message body.
//  2. Resolve countries, gather weather and headlines, render and send.
//  3. Malformed or invalid jobs are acknowledged and dropped; any other
//     failure is reported in batchItemFailures so SQS retries only that
//     message.
//
// Outside Lambda the worker reads newline-delimited BriefingJobs from stdin,
// which is handy for replaying a dead-letter queue locally.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Beez1/bounceinsights/internal/app"
	"github.com/Beez1/bounceinsights/internal/briefing"
	"github.com/Beez1/bounceinsights/internal/config"
	"github.com/Beez1/bounceinsights/internal/queue"
	"github.com/Beez1/bounceinsights/internal/types"
)

// JobProcessor runs one briefing job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job types.BriefingJob) (briefing.Receipt, error)
}

// Handler holds the dependencies of the worker.
type Handler struct {
	processor JobProcessor
	flush     func(ctx context.Context) error
	logger    *slog.Logger
}

// Handle processes an SQS batch using partial batch responses.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process briefing job",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	if h.flush != nil {
		if err := h.flush(ctx); err != nil {
			h.logger.Warn("metrics flush failed", "error", err)
		}
	}
	return response, nil
}

// processMessage returns an error only for failures worth retrying.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	job, err := queue.DecodeJob(record.Body)
	if err != nil {
		// Permanent: the body will never parse. ACK it.
		h.logger.Error("dropping malformed briefing job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"job_id", job.JobID,
		"request_id", job.RequestID,
		"retry_count", job.RetryCount,
	)
	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if ts, err := parseMillisTimestamp(sent); err == nil {
			logger = logger.With("queue_lag", time.Since(ts).String())
		}
	}
	logger.Info("processing briefing job")

	receipt, err := h.processor.ProcessJob(types.WithLogger(ctx, logger), job)
	if err != nil {
		if isPermanent(err) {
			logger.Error("dropping invalid briefing job", "error", err.Error())
			return nil
		}
		return fmt.Errorf("job %s: %w", job.JobID, err)
	}

	logger.Info("briefing delivered",
		"reference_id", receipt.ReferenceID,
		"provider_message_id", receipt.ProviderMessageID,
	)
	return nil
}

// isPermanent reports whether retrying err cannot succeed.
func isPermanent(err error) bool {
	return types.CodeOf(err).HTTPStatus() == http.StatusBadRequest
}

func parseMillisTimestamp(s string) (time.Time, error) {
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// RunLocal processes newline-delimited jobs from r until EOF.
func (h *Handler) RunLocal(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var batch events.SQSEvent
	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		n++
		batch.Records = append(batch.Records, events.SQSMessage{
			MessageId: fmt.Sprintf("local-%d", n),
			Body:      line,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading jobs: %w", err)
	}

	resp, err := h.Handle(ctx, batch)
	if err != nil {
		return err
	}
	if failed := len(resp.BatchItemFailures); failed > 0 {
		return fmt.Errorf("%d of %d briefing jobs failed", failed, n)
	}
	h.logger.Info("local batch complete", "jobs", n)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel).With("service", "briefing-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building service graph: %w", err)
	}

	h := &Handler{processor: a.Insights, flush: a.Flush, logger: logger}

	if isLambdaEnvironment() {
		lambda.Start(h.Handle)
		return nil
	}
	return h.RunLocal(ctx, os.Stdin)
}

func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return hasRuntimeAPI
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
