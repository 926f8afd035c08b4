package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
)

// Client to server.
const (
	MessageMakeMove       = "MAKE_MOVE"
	MessageResetGame      = "RESET_GAME"
	MessageRequestRematch = "REQUEST_REMATCH"
	MessageDeclineRematch = "DECLINE_REMATCH"
	MessageLeaveGame      = "LEAVE_GAME"
)

// Server to client.
const (
	MessageStateUpdate     = "STATE_UPDATE"
	MessageRematchDeclined = "REMATCH_DECLINED"
	MessageOpponentLeft    = "OPPONENT_LEFT"
	MessageJoined          = "JOINED"
	MessageError           = "ERROR"
)

const (
	IntentJoin IntentKind = iota + 1
	IntentMakeMove
	IntentRequestRematch
	IntentDeclineRematch
	IntentLeave
	IntentReset
)

// Message is the tagged union exchanged over a sync channel.
type Message struct {
	Type    string     `json:"type"`
	Index   *int       `json:"index,omitempty"`
	Player  Mark       `json:"player,omitempty"`
	Payload *GameState `json:"payload,omitempty"`
	Token   string     `json:"token,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type IntentKind int

// Intent is a request to change session state on behalf of Role.
type Intent struct {
	Kind  IntentKind
	Role  Mark
	Index int
}

func NewStateUpdate(state *GameState) Message {
	return Message{Type: MessageStateUpdate, Payload: state}
}

func NewMakeMove(player Mark, index int) Message {
	return Message{Type: MessageMakeMove, Player: player, Index: &index}
}

// IsFinal reports whether no further messages follow on this session.
func (that Message) IsFinal() bool {
	return that.Type == MessageRematchDeclined || that.Type == MessageOpponentLeft
}

// IntentFromMessage converts a client message sent over a seat owned by role.
// A player field that disagrees with the seat is rejected.
func IntentFromMessage(role Mark, msg Message) (Intent, error) {
	if msg.Player != EmptyCell && msg.Player != role {
		return Intent{}, fmt.Errorf("%w: message for %s on seat %s", apperror.ErrInvalidRole, msg.Player, role)
	}

	switch msg.Type {
	case MessageMakeMove:
		if msg.Index == nil {
			return Intent{}, fmt.Errorf("%w: %s without index", apperror.ErrMalformedMessage, msg.Type)
		}

		return Intent{Kind: IntentMakeMove, Role: role, Index: *msg.Index}, nil
	case MessageResetGame:
		return Intent{Kind: IntentReset, Role: role}, nil
	case MessageRequestRematch:
		return Intent{Kind: IntentRequestRematch, Role: role}, nil
	case MessageDeclineRematch:
		return Intent{Kind: IntentDeclineRematch, Role: role}, nil
	case MessageLeaveGame:
		return Intent{Kind: IntentLeave, Role: role}, nil
	default:
		return Intent{}, fmt.Errorf("%w: unknown type %q", apperror.ErrMalformedMessage, msg.Type)
	}
}
