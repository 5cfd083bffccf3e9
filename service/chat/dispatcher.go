package chat

import (
	"context"

	"PulseIM/tools/errs"
)

// HandlerFunc handles one client->core op. Returned errors become a scoped
// `error` event to that client only.
type HandlerFunc func(ctx context.Context, c *Client, data map[string]any) error

type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(op string, h HandlerFunc) { d.handlers[op] = h }

func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, f *Frame) error {
	h, ok := d.handlers[f.Op]
	if !ok {
		return errs.ErrValidation.WithDetail("unknown op " + f.Op)
	}
	return h(ctx, c, f.Data)
}
