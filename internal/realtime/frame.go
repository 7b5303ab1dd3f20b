package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/shared"
)

// FrameType is the top-level "type" of a WebSocket frame.
type FrameType string

const (
	FrameItemChange            FrameType = "item_change"
	FrameListChange            FrameType = "list_change"
	FramePing                  FrameType = "ping"
	FramePong                  FrameType = "pong"
	FrameConnectionEstablished FrameType = "connection_established"
	FrameError                 FrameType = "error"
)

// EventType is the "event_type" of a change frame.
type EventType string

const (
	EventCreated         EventType = "created"
	EventUpdated         EventType = "updated"
	EventDeleted         EventType = "deleted"
	EventShared          EventType = "shared"
	EventMemberRemoved   EventType = "member_removed"
	EventCategoryChanged EventType = "category_changed"
)

// ItemEvent reports whether e is valid on an item_change frame.
func (e EventType) ItemEvent() bool {
	switch e {
	case EventCreated, EventUpdated, EventDeleted, EventCategoryChanged:
		return true
	}
	return false
}

// updateSibling returns the other event an item update may be broadcast as.
// An update that touches the category is tracked under both.
func (e EventType) updateSibling() (EventType, bool) {
	switch e {
	case EventUpdated:
		return EventCategoryChanged, true
	case EventCategoryChanged:
		return EventUpdated, true
	}
	return "", false
}

// ListEvent reports whether e is valid on a list_change frame.
func (e EventType) ListEvent() bool {
	return e.ItemEvent() || e == EventShared || e == EventMemberRemoved
}

// Frame is the wire shape of every inbound message.
type Frame struct {
	Type           FrameType            `json:"type"`
	EventType      EventType            `json:"event_type,omitempty"`
	ListID         *int64               `json:"list_id,omitempty"`
	Item           *models.Item         `json:"item,omitempty"`
	List           *models.ShoppingList `json:"list,omitempty"`
	Timestamp      string               `json:"timestamp,omitempty"`
	UserID         *int64               `json:"user_id,omitempty"`
	NewMemberEmail string               `json:"new_member_email,omitempty"`
	RemovedUserID  *int64               `json:"removed_user_id,omitempty"`
	Message        string               `json:"message,omitempty"`
	SessionID      string               `json:"session_id,omitempty"`
}

// Event is a decoded inbound frame. It is one of [ItemChanged], [ListChanged], [Pong],
// [ConnectionEstablished] or [ErrorMessage].
type Event interface {
	frameType() FrameType
}

// ItemChanged reports a created, updated, deleted or recategorized item.
type ItemChanged struct {
	ListID    int64
	Event     EventType
	Item      *models.Item
	UserID    *int64
	Timestamp string
}

// ListChanged reports a change to the list itself or its membership.
type ListChanged struct {
	ListID         int64
	Event          EventType
	List           *models.ShoppingList
	UserID         *int64
	NewMemberEmail string
	RemovedUserID  *int64
	Timestamp      string
}

// Pong answers a heartbeat ping.
type Pong struct{}

// ConnectionEstablished completes the handshake and carries the session id.
type ConnectionEstablished struct {
	ListID    int64
	SessionID string
}

// ErrorMessage is a server-side error delivered over the socket.
type ErrorMessage struct {
	Message string
}

func (ItemChanged) frameType() FrameType           { return FrameItemChange }
func (ListChanged) frameType() FrameType           { return FrameListChange }
func (Pong) frameType() FrameType                  { return FramePong }
func (ConnectionEstablished) frameType() FrameType { return FrameConnectionEstablished }
func (ErrorMessage) frameType() FrameType          { return FrameError }

// Decode parses one inbound frame. Invalid JSON and unknown types wrap [shared.ErrMalformedFrame].
//
// Change frames missing their payload or event type still decode; the dispatcher decides to drop them.
func Decode(data []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedFrame, err)
	}

	listID := int64(0)
	if f.ListID != nil {
		listID = *f.ListID
	}

	switch f.Type {
	case FrameItemChange:
		if listID == 0 && f.Item != nil {
			listID = f.Item.ListID
		}
		return ItemChanged{
			ListID:    listID,
			Event:     f.EventType,
			Item:      f.Item,
			UserID:    f.UserID,
			Timestamp: f.Timestamp,
		}, nil
	case FrameListChange:
		if listID == 0 && f.List != nil {
			listID = f.List.ID
		}
		return ListChanged{
			ListID:         listID,
			Event:          f.EventType,
			List:           f.List,
			UserID:         f.UserID,
			NewMemberEmail: f.NewMemberEmail,
			RemovedUserID:  f.RemovedUserID,
			Timestamp:      f.Timestamp,
		}, nil
	case FramePong:
		return Pong{}, nil
	case FrameConnectionEstablished:
		return ConnectionEstablished{ListID: listID, SessionID: f.SessionID}, nil
	case FrameError:
		return ErrorMessage{Message: f.Message}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", shared.ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", shared.ErrMalformedFrame, f.Type)
	}
}

// pingFrame is the heartbeat payload.
var pingFrame = Frame{Type: FramePing}
