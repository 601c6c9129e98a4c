// Package natsevents publishes escrow lifecycle events to NATS.
//
// Subjects are "<prefix>.<operation>.<outcome>", for example
// "talentlayer.escrow.approve.succeeded".
package natsevents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	talentlayer "github.com/talentlayer/talentlayer-go"
)

// Event types
const (
	EventSucceeded = "succeeded"
	EventFailed    = "failed"
)

// Event is the JSON payload of every message.
type Event struct {
	Type            string    `json:"type"`
	Operation       string    `json:"operation"`
	AttemptID       string    `json:"attemptId"`
	Network         int       `json:"network"`
	ServiceID       string    `json:"serviceId"`
	ProposalID      string    `json:"proposalId,omitempty"`
	TransactionHash string    `json:"txHash,omitempty"`
	ApprovalTxHash  string    `json:"approvalTxHash,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	State           string    `json:"state,omitempty"`
	Code            string    `json:"code,omitempty"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher turns hook callbacks into NATS messages.
type Publisher struct {
	conn   Conn
	prefix string
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewPublisher creates a publisher writing under prefix.
func NewPublisher(conn Conn, prefix string, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{conn: conn, prefix: prefix, log: log, now: time.Now}
}

// Connect dials url with reconnects enabled.
func Connect(url string, log logrus.FieldLogger) (*nats.Conn, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, err := nats.Connect(url,
		nats.Name("talentlayer-escrow"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return conn, nil
}

// Attach publishes every operation outcome of c.
func (p *Publisher) Attach(c *talentlayer.Client) {
	c.OnAfterOperation(func(rc talentlayer.OperationResultContext) error {
		event := p.base(EventSucceeded, rc.OperationContext)
		event.TransactionHash = rc.TransactionHash
		event.ApprovalTxHash = rc.ApprovalTxHash
		if rc.Amount != nil {
			event.Amount = rc.Amount.String()
		}
		return p.Publish(event)
	})
	c.OnOperationFailure(func(fc talentlayer.OperationFailureContext) error {
		event := p.base(EventFailed, fc.OperationContext)
		event.State = string(fc.State)
		event.Code = fc.Code
		if fc.Error != nil {
			event.Error = fc.Error.Error()
		}
		return p.Publish(event)
	})
}

func (p *Publisher) base(eventType string, op talentlayer.OperationContext) Event {
	return Event{
		Type:       eventType,
		Operation:  string(op.Operation),
		AttemptID:  op.AttemptID,
		Network:    int(op.Network),
		ServiceID:  op.ServiceID,
		ProposalID: op.ProposalID,
		Timestamp:  p.now().UTC(),
	}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event Event) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, event.Operation, event.Type)
}

// Publish sends event. Failures are logged and returned; the escrow operation
// itself is never affected.
func (p *Publisher) Publish(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := p.Subject(event)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"subject":    subject,
			"attempt_id": event.AttemptID,
		}).Warn("failed to publish escrow event")
		return err
	}
	return nil
}
