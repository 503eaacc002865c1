package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zelara-ai/app-mobile/internal/metrics"
	"github.com/zelara-ai/app-mobile/internal/pending"
	"github.com/zelara-ai/app-mobile/internal/proto"
)

// Client is the typed facade over one Manager. Every task operation is the
// same round trip: precondition, id, envelope, register, send, await. Calls
// are independent and may resolve out of order; only the id correlates them.
type Client struct {
	mgr     *Manager
	table   *pending.Table
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func NewClient(mgr *Manager, table *pending.Table, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.New()
	}
	return &Client{
		mgr:     mgr,
		table:   table,
		metrics: m,
		now:     time.Now,
		newID:   newRequestID,
	}
}

// newRequestID needs uniqueness within a connection's lifetime, not
// unpredictability.
func newRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}

// SendImageValidation asks the desktop to score an image as recyclable.
func (c *Client) SendImageValidation(ctx context.Context, imageB64 string) (*proto.ValidationResult, error) {
	resp, err := c.roundTrip(ctx, proto.TaskImageValidation, map[string]any{"image": imageB64}, validationTimeout())
	if err != nil {
		return nil, err
	}
	var out proto.ValidationResult
	if err := resp.DecodeResult(&out); err != nil {
		return nil, &ProtocolError{TaskID: resp.TaskID, Reason: fmt.Sprintf("malformed validation result: %v", err)}
	}
	return &out, nil
}

// SendImageInversionTest is the round-trip smoke test: the desktop returns the
// image with its bytes inverted.
func (c *Client) SendImageInversionTest(ctx context.Context, imageB64 string) (*proto.InversionResult, error) {
	resp, err := c.roundTrip(ctx, proto.TaskInversionTest, map[string]any{"image": imageB64}, inversionTimeout())
	if err != nil {
		return nil, err
	}
	var out proto.InversionResult
	if err := resp.DecodeResult(&out); err != nil {
		return nil, &ProtocolError{TaskID: resp.TaskID, Reason: fmt.Sprintf("malformed inversion result: %v", err)}
	}
	return &out, nil
}

// SendCounterUpdate bumps the desktop-side item counter.
func (c *Client) SendCounterUpdate(ctx context.Context, delta int) (*proto.CounterResult, error) {
	resp, err := c.roundTrip(ctx, proto.TaskCounterUpdate, map[string]any{"delta": delta}, counterTimeout())
	if err != nil {
		return nil, err
	}
	var out proto.CounterResult
	if err := resp.DecodeResult(&out); err != nil {
		return nil, &ProtocolError{TaskID: resp.TaskID, Reason: fmt.Sprintf("malformed counter result: %v", err)}
	}
	return &out, nil
}

func (c *Client) roundTrip(ctx context.Context, kind string, payload map[string]any, timeout time.Duration) (proto.TaskResponse, error) {
	if !c.mgr.IsConnected() {
		return proto.TaskResponse{}, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return proto.TaskResponse{}, err
	}

	id := c.newID()
	payload["token"] = c.mgr.Token()
	req := proto.NewTaskRequest(id, kind, payload, c.now())
	data, err := proto.EncodeTaskRequest(req)
	if err != nil {
		return proto.TaskResponse{}, err
	}

	call, err := c.table.Register(id, timeout)
	if err != nil {
		return proto.TaskResponse{}, err
	}
	start := c.now()
	c.metrics.IncTaskSent()
	if err := c.mgr.Send(data); err != nil {
		// Never leave a dangling entry behind a failed send.
		c.table.Cancel(id)
		c.metrics.IncTaskSendFails()
		return proto.TaskResponse{}, err
	}

	out := <-call.Done()
	elapsed := c.now().Sub(start).Milliseconds()
	switch {
	case out.Err == nil:
		c.metrics.IncTaskResolved()
		if !out.Resp.Success {
			c.metrics.Recent().Add(metrics.TaskHeader{TaskID: id, TaskType: kind, Outcome: "rejected", Millis: elapsed})
			reason := out.Resp.ResultError()
			if reason == "" {
				reason = "task failed"
			}
			return proto.TaskResponse{}, &ProtocolError{TaskID: id, Reason: reason}
		}
		c.metrics.Recent().Add(metrics.TaskHeader{TaskID: id, TaskType: kind, Outcome: "ok", Millis: elapsed})
		return out.Resp, nil
	case errors.Is(out.Err, pending.ErrExpired):
		c.metrics.IncTaskExpired()
		c.metrics.Recent().Add(metrics.TaskHeader{TaskID: id, TaskType: kind, Outcome: "timeout", Millis: elapsed})
		return proto.TaskResponse{}, fmt.Errorf("%w: %s after %s", ErrTimeout, kind, timeout)
	default:
		c.metrics.Recent().Add(metrics.TaskHeader{TaskID: id, TaskType: kind, Outcome: "closed", Millis: elapsed})
		return proto.TaskResponse{}, out.Err
	}
}
