package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationKind is the mutation carried by a SyncOperation.
type OperationKind string

const (
	OpCreate OperationKind = "CREATE"
	OpUpdate OperationKind = "UPDATE"
	OpDelete OperationKind = "DELETE"
)

// EntityKind is the record type a SyncOperation targets.
type EntityKind string

const (
	EntitySubscription EntityKind = "subscription"
	EntityPayment      EntityKind = "payment"
)

// SyncOperation is a buffered mutation awaiting remote confirmation.
// Seq orders operations FIFO and is assigned by the store.
type SyncOperation struct {
	Seq       int64
	ID        string
	Kind      OperationKind
	Entity    EntityKind
	Payload   json.RawMessage
	TargetID  string
	CreatedAt time.Time
	Attempts  int
	LastError string
}

// NewSyncOperation builds an operation with a fresh id. payload may be nil
// for deletes.
func NewSyncOperation(kind OperationKind, entity EntityKind, targetID string, payload any, now time.Time) (*SyncOperation, error) {
	op := &SyncOperation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Entity:    entity,
		TargetID:  targetID,
		CreatedAt: now,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", entity, err)
		}
		op.Payload = b
	}
	return op, nil
}

// DecodeSubscription unmarshals the payload of a subscription operation.
func (o *SyncOperation) DecodeSubscription() (*Subscription, error) {
	if len(o.Payload) == 0 {
		return nil, fmt.Errorf("operation %s has no payload", o.ID)
	}
	var s Subscription
	if err := json.Unmarshal(o.Payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode subscription payload: %w", err)
	}
	return &s, nil
}
