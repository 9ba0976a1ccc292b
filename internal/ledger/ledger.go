// Package ledger tracks which group messages have already been acted upon by
// any node, so that one message never triggers enforcement twice.
package ledger

import (
	"context"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/storage"
)

// Publisher sends envelopes to other nodes.
type Publisher interface {
	Publish(ctx context.Context, receivers []string, action, typ string, data any, att *exchange.Attachment) error
}

type Ledger struct {
	store     *storage.Store
	pub       Publisher
	receivers []string
}

func New(store *storage.Store, pub Publisher, receivers []string) *Ledger {
	return &Ledger{store: store, pub: pub, receivers: receivers}
}

func (l *Ledger) IsDeclared(gid int64, mid int) bool {
	return l.store.IsDeclared(gid, mid)
}

// Declare records the message and tells the other nodes about it. Declaring a
// message twice does nothing the second time. The local record stands even
// when publishing fails.
func (l *Ledger) Declare(ctx context.Context, gid int64, mid int) error {
	if !l.store.Declare(gid, mid) {
		return nil
	}
	declaredCount.WithLabelValues("local").Inc()
	return l.pub.Publish(ctx, l.receivers, exchange.ActionUpdate, exchange.TypeDeclare,
		exchange.DeclarePayload{GroupID: gid, MessageID: mid}, nil)
}

// Accept records a declaration received from another node. Messages of
// groups this node does not manage are ignored.
func (l *Ledger) Accept(gid int64, mid int) bool {
	if !l.store.IsManaged(gid) {
		return false
	}
	if l.store.Declare(gid, mid) {
		declaredCount.WithLabelValues("remote").Inc()
		logger.Debugf("Message %d in group %d declared by another node", mid, gid)
		return true
	}
	return false
}
