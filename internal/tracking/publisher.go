package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/pkg/logger"
)

// Event is the queue envelope for engagement events. One message per open
// or click; the consumer turns it back into a store row.
type Event struct {
	Type      string    `json:"type"` // "open" or "click"
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	URL       string    `json:"url,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"ua,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	eventOpen  = "open"
	eventClick = "click"
)

type sqsSender interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher is a Recorder that hands events to an SQS queue instead of
// writing to the store in-process. Use it when tracking endpoints run on
// separate instances from the store writer.
type Publisher struct {
	client   sqsSender
	queueURL string
	wg       sync.WaitGroup
}

// NewPublisher creates an SQS-backed recorder.
func NewPublisher(client sqsSender, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) RecordOpen(e domain.OpenEvent) {
	p.publish(Event{
		Type:      eventOpen,
		ID:        e.ID,
		MessageID: e.MessageID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Referer:   e.Referer,
		Timestamp: e.OpenedAt,
	})
}

func (p *Publisher) RecordClick(e domain.ClickEvent) {
	p.publish(Event{
		Type:      eventClick,
		ID:        e.ID,
		MessageID: e.MessageID,
		URL:       e.URL,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Timestamp: e.ClickedAt,
	})
}

func (p *Publisher) Wait() { p.wg.Wait() }

func (p *Publisher) publish(evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal tracking event", "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("publish tracking event", "type", evt.Type, "error", err)
		}
	}()
}
