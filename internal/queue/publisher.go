// Package queue provides the SQS producer that hands email briefings to the
// briefing worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/Beez1/bounceinsights/internal/config"
	"github.com/Beez1/bounceinsights/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// BriefingPublisher serializes BriefingJobs onto the briefing queue.
type BriefingPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewBriefingPublisher creates a BriefingPublisher for the queue named in
// cfg.
func NewBriefingPublisher(client SQSSender, cfg config.QueueConfig, logger *slog.Logger) *BriefingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BriefingPublisher{
		client:   client,
		queueURL: cfg.BriefingQueueURL,
		logger:   logger,
	}
}

// Publish assigns a job ID when job has none, enqueues it and returns the ID.
func (p *BriefingPublisher) Publish(ctx context.Context, job types.BriefingJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.RequestID == "" {
		job.RequestID = types.GetRequestID(ctx)
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal BriefingJob: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"job_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.JobID),
			},
			"retry_count": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(job.RetryCount)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"Failed to queue briefing",
			fmt.Errorf("queue: failed to send BriefingJob to %s: %w", p.queueURL, err))
	}

	p.logger.InfoContext(ctx, "briefing job queued",
		"queue_url", p.queueURL,
		"job_id", job.JobID,
		"request_id", job.RequestID,
		"countries", len(job.Countries),
	)
	return job.JobID, nil
}

// DecodeJob parses an SQS message body into a BriefingJob and checks that
// the fields the worker needs are present.
func DecodeJob(body string) (types.BriefingJob, error) {
	var job types.BriefingJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return types.BriefingJob{}, fmt.Errorf("queue: malformed BriefingJob: %w", err)
	}
	if job.RecipientEmail == "" || job.ImageURL == "" {
		return types.BriefingJob{}, fmt.Errorf("queue: BriefingJob %q missing recipient or image", job.JobID)
	}
	return job, nil
}
