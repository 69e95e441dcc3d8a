package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewModerationEvent monta o evento de auditoria de uma transição.
// O ID é um ULID: a ordem lexicográfica segue a ordem de criação.
func NewModerationEvent(kind Kind, listingID string, action ModerationAction, actorID string) ModerationEvent {
	return ModerationEvent{
		ID:        ulid.Make().String(),
		Kind:      kind,
		ListingID: listingID,
		Action:    action,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
}
