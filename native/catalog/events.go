package catalog

import (
	"encoding/hex"
	"strconv"

	"catalogchain/core/events"
	"catalogchain/core/types"
)

const (
	// EventTypeAuthorRegistered is emitted the first time an author publishes.
	EventTypeAuthorRegistered = "catalog.author.registered"
	// EventTypeContentPublished is emitted when new content enters the registry.
	EventTypeContentPublished = "catalog.content.published"
	// EventTypeSubscriptionPurchased is emitted when a premium subscription is bought or renewed.
	EventTypeSubscriptionPurchased = "catalog.subscription.purchased"
	// EventTypeContentGranted is emitted when an access grant is forwarded to a content manager.
	EventTypeContentGranted = "catalog.content.granted"
	// EventTypeCreditAvailable is the advisory signal that an author crossed the payable view threshold.
	EventTypeCreditAvailable = "catalog.credit.available"
	// EventTypeCreditTransferred is emitted whenever accrued credit leaves the vault.
	EventTypeCreditTransferred = "catalog.credit.transferred"
	// EventTypeCatalogClosed is emitted once by the terminal liquidation.
	EventTypeCatalogClosed = "catalog.closed"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// AuthorRegisteredEvent announces a newly registered author.
func AuthorRegisteredEvent(author string) *types.Event {
	return &types.Event{
		Type: EventTypeAuthorRegistered,
		Attributes: map[string]string{
			"author": author,
		},
	}
}

// ContentPublishedEvent announces a successful publication.
func ContentPublishedEvent(ref string, author string, title string, genre uint64) *types.Event {
	return &types.Event{
		Type: EventTypeContentPublished,
		Attributes: map[string]string{
			"ref":    ref,
			"author": author,
			"title":  title,
			"genre":  strconv.FormatUint(genre, 10),
		},
	}
}

// SubscriptionPurchasedEvent announces a new or renewed premium subscription.
func SubscriptionPurchasedEvent(account string, expiresAt int64) *types.Event {
	return &types.Event{
		Type: EventTypeSubscriptionPurchased,
		Attributes: map[string]string{
			"account":   account,
			"expiresAt": strconv.FormatInt(expiresAt, 10),
		},
	}
}

// ContentGrantedEvent announces an access grant forwarded to a content manager.
func ContentGrantedEvent(ref string, account string, until int64, premium bool) *types.Event {
	return &types.Event{
		Type: EventTypeContentGranted,
		Attributes: map[string]string{
			"ref":     ref,
			"account": account,
			"until":   strconv.FormatInt(until, 10),
			"premium": strconv.FormatBool(premium),
		},
	}
}

// CreditAvailableEvent signals that an author may withdraw accrued credit.
// It is advisory and may fire on every view past the threshold.
func CreditAvailableEvent(author string, credit string, views uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCreditAvailable,
		Attributes: map[string]string{
			"author": author,
			"credit": credit,
			"views":  strconv.FormatUint(views, 10),
		},
	}
}

// CreditTransferredEvent records value leaving the vault toward a recipient.
func CreditTransferredEvent(recipient string, amount string, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeCreditTransferred,
		Attributes: map[string]string{
			"recipient": recipient,
			"amount":    amount,
			"reason":    reason,
		},
	}
}

// CatalogClosedEvent records the terminal liquidation of the ledger.
func CatalogClosedEvent(owner string, residual string) *types.Event {
	return &types.Event{
		Type: EventTypeCatalogClosed,
		Attributes: map[string]string{
			"owner":    owner,
			"residual": residual,
		},
	}
}
