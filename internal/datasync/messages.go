package datasync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// SendMessage stores a new direct message stamped with the current UTC time.
func (f *Facade) SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:         models.NewID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
	}
	rec, err := models.ToRecord(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	err = f.run(ctx, func(b store.Backend) error {
		return b.Put(ctx, store.CollectionMessages, msg.ID, rec)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkMessagesRead flips the given messages to read. The transition is one
// way; marking an already-read message is a harmless overwrite of the same
// value.
func (f *Facade) MarkMessagesRead(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		err := f.run(ctx, func(b store.Backend) error {
			return b.Merge(ctx, store.CollectionMessages, id,
				models.Record{"isRead": true})
		})
		if err != nil {
			return fmt.Errorf("failed to mark message %s read: %w", id, err)
		}
	}
	return nil
}

// Conversation returns every message exchanged between the pair, ordered by
// timestamp ascending regardless of arrival or storage order.
func (f *Facade) Conversation(ctx context.Context, userID, peerID string) ([]*models.Message, error) {
	var recs []models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		recs, err = b.Query(ctx, store.CollectionMessages, conversationOf(userID, peerID))
		return err
	})
	if err != nil {
		return nil, err
	}
	msgs, err := models.DecodeAll[models.Message](recs)
	if err != nil {
		return nil, err
	}
	sortMessages(msgs)
	return msgs, nil
}

// UnreadCounts returns, per peer, how many messages addressed to the user
// are still unread. Used for the conversation list badge.
func (f *Facade) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	var recs []models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		recs, err = b.Query(ctx, store.CollectionMessages,
			store.Where(store.Eq("receiverId", userID), store.Eq("isRead", false)))
		return err
	})
	if err != nil {
		return nil, err
	}
	msgs, err := models.DecodeAll[models.Message](recs)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, m := range msgs {
		counts[m.SenderID]++
	}
	return counts, nil
}

// SubscribeConversation delivers the full message history between the pair
// immediately and on every change, always sorted by timestamp ascending.
// While the subscription is open, incoming messages addressed to userID are
// marked read automatically; each message is marked at most once per
// subscription, off the delivery path.
func (f *Facade) SubscribeConversation(ctx context.Context, userID, peerID string, fn func([]*models.Message)) (store.CancelFunc, error) {
	var (
		mu     sync.Mutex
		marked = make(map[string]struct{})
	)
	e := &subEntry{
		kind:       subQuery,
		collection: store.CollectionMessages,
		filter:     conversationOf(userID, peerID),
		queryFn: func(recs []models.Record) {
			msgs, err := models.DecodeAll[models.Message](recs)
			if err != nil {
				f.log.Warn(context.Background(), "dropping undecodable message batch",
					"error", err)
				return
			}
			sortMessages(msgs)
			fn(msgs)

			mu.Lock()
			var unread []string
			for _, m := range msgs {
				if m.ReceiverID != userID || m.IsRead {
					continue
				}
				if _, done := marked[m.ID]; done {
					continue
				}
				marked[m.ID] = struct{}{}
				unread = append(unread, m.ID)
			}
			mu.Unlock()
			if len(unread) == 0 {
				return
			}
			// marking triggers another delivery of this very query; do it
			// off the handler goroutine to avoid re-entering the bus
			go func() {
				if err := f.MarkMessagesRead(context.Background(), unread...); err != nil {
					f.log.Warn(context.Background(), "failed to mark conversation read",
						"peer", peerID, "error", err)
				}
			}()
		},
	}
	return f.subscribe(ctx, e)
}

// conversationOf matches messages flowing in either direction between the
// pair. Both fields are constrained to the pair so a third party's messages
// to either member never leak in.
func conversationOf(a, b string) store.Filter {
	pair := []string{a, b}
	return store.Where(
		store.In("senderId", pair),
		store.In("receiverId", pair),
	)
}

func sortMessages(msgs []*models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})
}
