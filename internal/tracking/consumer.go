package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/pkg/logger"
	"github.com/orbitl/email-tracker/internal/store"
)

type sqsReceiver interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Consumer drains the tracking queue into the store. Poison messages
// (unparseable bodies) are deleted; store failures leave the message on the
// queue for redelivery.
type Consumer struct {
	client   sqsReceiver
	queueURL string
	store    store.Store
	done     chan struct{}
}

// NewConsumer creates a queue consumer writing to the given store.
func NewConsumer(client sqsReceiver, queueURL string, st store.Store) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		store:    st,
		done:     make(chan struct{}),
	}
}

// Start begins long-polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("tracking consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop terminates the poll loop after the current receive returns.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue receive failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var evt Event
			if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
				logger.Warn("dropping unparseable queue message", "error", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if err := c.processEvent(ctx, evt); err != nil {
				logger.Error("process event failed", "type", evt.Type, "error", err)
				continue
			}

			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) processEvent(ctx context.Context, evt Event) error {
	switch evt.Type {
	case eventOpen:
		return c.store.InsertOpen(ctx, &domain.OpenEvent{
			ID:        evt.ID,
			MessageID: evt.MessageID,
			OpenedAt:  evt.Timestamp,
			IP:        evt.IP,
			UserAgent: evt.UserAgent,
			Referer:   evt.Referer,
		})
	case eventClick:
		return c.store.InsertClick(ctx, &domain.ClickEvent{
			ID:        evt.ID,
			MessageID: evt.MessageID,
			URL:       evt.URL,
			ClickedAt: evt.Timestamp,
			IP:        evt.IP,
			UserAgent: evt.UserAgent,
		})
	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, receipt *string) {
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receipt,
	}); err != nil {
		logger.Error("queue delete failed", "error", err)
	}
}
