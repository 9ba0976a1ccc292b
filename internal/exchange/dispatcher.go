package exchange

import (
	"context"
	"fmt"
	"sort"

	"tg-exchange/internal/crash"
	"tg-exchange/internal/logger"
)

// AnySender matches envelopes from every node.
const AnySender = "*"

// Route selects a handler by sender, action and type.
type Route struct {
	From   string
	Action string
	Type   string
}

func (r Route) String() string {
	return r.From + "/" + r.Action + "/" + r.Type
}

// Handler processes one received envelope.
type Handler func(ctx context.Context, env Envelope) error

// Status is the fate of one received post.
type Status int

const (
	Malformed Status = iota
	NotForUs
	NoRoute
	Handled
	HandlerFailed
)

var statusNames = [...]string{"malformed", "not_for_us", "no_route", "handled", "handler_failed"}

func (s Status) String() string { return statusNames[s] }

// Router dispatches envelopes addressed to name. Routes are registered once
// at startup; registering a route twice is an error.
type Router struct {
	name   string
	routes map[Route]Handler
}

func NewRouter(name string) *Router {
	return &Router{name: name, routes: make(map[Route]Handler)}
}

func (r *Router) Handle(route Route, h Handler) error {
	if route.From == "" || route.Action == "" || route.Type == "" {
		return fmt.Errorf("incomplete route %q", route)
	}
	if h == nil {
		return fmt.Errorf("nil handler for %s", route)
	}
	if _, ok := r.routes[route]; ok {
		return fmt.Errorf("route %s registered twice", route)
	}
	r.routes[route] = h
	return nil
}

// On registers a handler that receives the envelope data decoded into T for
// every given route.
func On[T any](r *Router, h func(ctx context.Context, env Envelope, payload T) error, routes ...Route) error {
	decoded := func(ctx context.Context, env Envelope) error {
		var payload T
		if err := DecodeData(env.Data, &payload); err != nil {
			return fmt.Errorf("decode %T: %w", payload, err)
		}
		return h(ctx, env, payload)
	}
	for _, route := range routes {
		if err := r.Handle(route, decoded); err != nil {
			return err
		}
	}
	return nil
}

// Routes lists the registered routes in a stable order.
func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Dispatch decodes a channel post and runs its handler. Handler failures and
// panics are logged and never reach the caller.
func (r *Router) Dispatch(ctx context.Context, text string) Status {
	return r.DispatchPost(ctx, text, "")
}

// DispatchPost is Dispatch for a post that may carry a file; fileID reaches
// the handler as Envelope.FileID.
func (r *Router) DispatchPost(ctx context.Context, text, fileID string) Status {
	status := r.dispatch(ctx, text, fileID)
	receivedCount.WithLabelValues(r.name, status.String()).Inc()
	return status
}

func (r *Router) dispatch(ctx context.Context, text, fileID string) Status {
	env, ok := Decode(text)
	if !ok {
		logger.Debugf("Ignoring post that is not an envelope")
		return Malformed
	}
	env.FileID = fileID
	if !env.For(r.name) {
		return NotForUs
	}

	route := Route{From: env.From, Action: env.Action, Type: env.Type}
	h, ok := r.routes[route]
	if !ok {
		h, ok = r.routes[Route{From: AnySender, Action: env.Action, Type: env.Type}]
	}
	if !ok {
		logger.Debugf("No route for %s", route)
		return NoRoute
	}

	if err := r.run(ctx, route, h, env); err != nil {
		logger.Warningf("Handle %s: %v", route, err)
		return HandlerFailed
	}
	return Handled
}

func (r *Router) run(ctx context.Context, route Route, h Handler, env Envelope) (err error) {
	defer crash.Recover("route-"+route.String(), func(v interface{}) {
		err = fmt.Errorf("panic: %v", v)
	})
	return h(ctx, env)
}
