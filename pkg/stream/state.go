package stream

import "github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"

// State is the position of a Decoder in the event stream.
type State int

const (
	StateIdle State = iota
	StateMessageOpen
	StateBlockOpen
	StateBlockClosed
	StateMessageClosing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMessageOpen:
		return "message_open"
	case StateBlockOpen:
		return "block_open"
	case StateBlockClosed:
		return "block_closed"
	case StateMessageClosing:
		return "message_closing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type edge struct {
	from  State
	event string
}

var transitions = map[edge]State{
	{StateIdle, anthropic.EventMessageStart}: StateMessageOpen,

	{StateMessageOpen, anthropic.EventContentBlockStart}: StateBlockOpen,
	{StateMessageOpen, anthropic.EventMessageDelta}:      StateMessageClosing,
	{StateMessageOpen, anthropic.EventMessageStop}:       StateDone,

	{StateBlockOpen, anthropic.EventContentBlockDelta}: StateBlockOpen,
	{StateBlockOpen, anthropic.EventContentBlockStop}:  StateBlockClosed,

	{StateBlockClosed, anthropic.EventContentBlockStart}: StateBlockOpen,
	{StateBlockClosed, anthropic.EventMessageDelta}:      StateMessageClosing,
	{StateBlockClosed, anthropic.EventMessageStop}:       StateDone,

	{StateMessageClosing, anthropic.EventMessageDelta}: StateMessageClosing,
	{StateMessageClosing, anthropic.EventMessageStop}:  StateDone,
}

// Transition returns the state after event. ok is false when the event is
// not legal in s; the state is then unchanged. ping is legal everywhere and
// an error event ends the stream from any state.
func Transition(s State, event string) (State, bool) {
	switch event {
	case anthropic.EventPing:
		return s, true
	case anthropic.EventError:
		return StateDone, true
	}
	if next, ok := transitions[edge{s, event}]; ok {
		return next, true
	}
	return s, false
}
