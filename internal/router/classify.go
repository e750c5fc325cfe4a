package router

import (
	"github.com/frasergibbs/linear-agent-v0/internal/linear"
)

// lane is the dispatch variant an inbound event maps to.
type lane int

const (
	laneIgnored lane = iota
	laneMalformed
	laneCreated
	lanePrompted
)

func (l lane) String() string {
	switch l {
	case laneMalformed:
		return "malformed"
	case laneCreated:
		return "created"
	case lanePrompted:
		return "prompted"
	default:
		return "ignored"
	}
}

// classifyEvent maps an event to exactly one lane. Unrecognized
// (type, action) pairs are ignored; a recognized pair without an
// agentSession body is malformed.
func classifyEvent(ev linear.Event) lane {
	if ev.Type != linear.EventTypeAgentSession {
		return laneIgnored
	}

	switch ev.Action {
	case linear.ActionCreated:
		if ev.Data.AgentSession == nil {
			return laneMalformed
		}
		return laneCreated
	case linear.ActionPrompted:
		if ev.Data.AgentSession == nil {
			return laneMalformed
		}
		return lanePrompted
	default:
		return laneIgnored
	}
}
