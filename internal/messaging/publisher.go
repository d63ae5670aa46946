package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Event names published on the housing events queue.
const (
	EventRoomAssigned        = "housing.room_assigned"
	EventAssignmentCancelled = "housing.assignment_cancelled"
)

// AssignmentEvent is the wire payload for assignment lifecycle events.
type AssignmentEvent struct {
	Event      string    `json:"event"`
	TenantID   string    `json:"tenant_id"`
	BatchID    string    `json:"batch_id,omitempty"`
	RequestID  string    `json:"request_id"`
	StudentID  string    `json:"student_id,omitempty"`
	RoomID     string    `json:"room_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers assignment events to RabbitMQ. Publishing is best
// effort: a circuit breaker shields batch processing from a broken broker.
type Publisher struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	cb        *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewPublisher dials the broker and declares the durable events queue.
func NewPublisher(amqpURL, queueName string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Queue declaration is idempotent.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "housing-events",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Publisher{conn: conn, ch: ch, queueName: queueName, cb: cb, logger: logger}, nil
}

// RoomAssigned publishes a successful assignment.
func (p *Publisher) RoomAssigned(ctx context.Context, tenantID, batchID, requestID, studentID, roomID string) error {
	return p.publish(ctx, AssignmentEvent{
		Event:      EventRoomAssigned,
		TenantID:   tenantID,
		BatchID:    batchID,
		RequestID:  requestID,
		StudentID:  studentID,
		RoomID:     roomID,
		OccurredAt: time.Now().UTC(),
	})
}

// AssignmentCancelled publishes a manual cancellation.
func (p *Publisher) AssignmentCancelled(ctx context.Context, tenantID, requestID, roomID, reason string) error {
	return p.publish(ctx, AssignmentEvent{
		Event:      EventAssignmentCancelled,
		TenantID:   tenantID,
		RequestID:  requestID,
		RoomID:     roomID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, event AssignmentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return ctx.Err()
		}
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.ch.PublishWithContext(
			ctx,
			"",
			p.queueName,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		)
	})
	return err
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
