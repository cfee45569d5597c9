package cbc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// MessageNumberSource draws from the durable provider message number sequence.
type MessageNumberSource interface {
	NextMessageNumber(ctx context.Context) (int64, error)
}

// Client pairs a payload family with a provider's transport.
type Client struct {
	provider  types.Provider
	formatter Formatter
	transport *Transport
	numbers   MessageNumberSource
	sequenced bool
}

// Provider returns the provider this client sends to.
func (c *Client) Provider() types.Provider { return c.provider }

// UsesSequentialNumbers reports whether deliveries need a message number.
func (c *Client) UsesSequentialNumbers() bool { return c.sequenced }

// CreateAndSend sends a new alert.
func (c *Client) CreateAndSend(ctx context.Context, req BroadcastRequest) error {
	return c.transport.InvokeWithFailover(ctx, c.formatter.FormatAlert(req))
}

// UpdateAndSend sends new content referencing earlier messages.
func (c *Client) UpdateAndSend(ctx context.Context, req BroadcastRequest) error {
	return c.transport.InvokeWithFailover(ctx, c.formatter.FormatUpdate(req))
}

// Cancel withdraws the earlier messages referenced by req.
func (c *Client) Cancel(ctx context.Context, req BroadcastRequest) error {
	return c.transport.InvokeWithFailover(ctx, c.formatter.FormatCancel(req))
}

// SendLinkTest sends a test message to every endpoint and target. Sequenced
// providers consume a number from the shared sequence.
func (c *Client) SendLinkTest(ctx context.Context) error {
	var number string
	if c.sequenced {
		n, err := c.numbers.NextMessageNumber(ctx)
		if err != nil {
			return fmt.Errorf("draw link test message number: %w", err)
		}
		number = FormatMessageNumber(n)
	}
	return c.transport.InvokeAll(ctx, c.formatter.FormatTest(uuid.NewString(), number))
}
