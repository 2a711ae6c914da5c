package agent

import (
	"errors"
	"net"

	"github.com/halcyon-systems/gostun"
	"github.com/halcyon-systems/gostun/attrs"
	"github.com/halcyon-systems/gostun/channel"
)

// Handler is the application-level message handler a Server dispatches
// to. HandleRequest's returned message is sent back via channel.Reply;
// a nil message (with a nil error) means NoReply. HandleIndication never
// replies. HandleBroken handles an invalid request event that the server
// has NOT already turned into a 420 (i.e. one whose decode failure wasn't
// an unsupported comprehension-required attribute), which the handler
// still gets a chance to answer.
type Handler interface {
	HandleRequest(peer net.Addr, req *stun.Message) (*stun.Message, error)
	HandleIndication(peer net.Addr, ind *stun.Message)
	HandleBroken(peer net.Addr, broken *stun.BrokenMessage) (*stun.Message, error)
}

// Server polls a channel.Channel, routes Request and Indication events
// to a Handler, and forwards replies back through channel.Reply. It runs
// on the caller's goroutine (Serve blocks), matching the single-engine
// cooperative model: a server does not need its own background task the
// way Client does, since there is no caller-facing handle to keep
// responsive while the engine is busy.
type Server struct {
	ch      *channel.Channel
	handler Handler
	log     stun.Logger
}

// NewServer builds a server dispatching ch's Request/Indication events to
// handler.
func NewServer(ch *channel.Channel, handler Handler, log stun.Logger) *Server {
	if log == nil {
		log = stun.NopLogger()
	}
	return &Server{ch: ch, handler: handler, log: log}
}

// Serve polls the channel in a loop until the transport terminates or
// stop is closed.
func (s *Server) Serve(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		ev, ok := s.ch.Poll()
		if !ok {
			if terminated, err := s.ch.Terminated(); terminated {
				return err
			}
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Server) dispatch(ev channel.Event) {
	switch ev.Kind {
	case channel.EventRequest:
		s.handleRequest(ev)
	case channel.EventIndication:
		s.handler.HandleIndication(ev.Peer, ev.Message)
	case channel.EventInvalid:
		s.handleInvalid(ev)
	}
}

func (s *Server) handleRequest(ev channel.Event) {
	resp, err := s.handler.HandleRequest(ev.Peer, ev.Message)
	if err != nil {
		s.log.Errorf("handle request from %v: %v", ev.Peer, err)
		return
	}
	if resp == nil {
		return
	}
	if err := s.ch.Reply(ev.Peer, resp); err != nil {
		s.log.Errorf("reply to %v: %v", ev.Peer, err)
	}
}

// handleInvalid answers an unsupported comprehension-required attribute
// in a request with a 420 (Unknown Attribute) error response enumerating
// the offenders, per §4.7. An invalid request with any other decode
// failure is handed to the handler's HandleBroken; invalid events whose
// Class is not Request are logged and dropped.
func (s *Server) handleInvalid(ev channel.Event) {
	if ev.Class != stun.ClassRequest {
		s.log.Debugf("dropping invalid non-request event from %v: %v", ev.Peer, ev.Err)
		return
	}

	var unsupported *stun.UnsupportedAttributesError
	hasUnsupported := errors.As(ev.Err, &unsupported)

	broken := &stun.BrokenMessage{Class: ev.Class, Method: ev.Method, TransactionID: ev.TransactionID, Err: ev.Err}

	if hasUnsupported {
		resp := stun.NewMessage(stun.ClassErrorResponse, ev.Method, ev.TransactionID)
		resp.Add(attrs.ErrorCode{Code: 420, Reason: "Unknown Attribute"})
		resp.Add(attrs.UnknownAttributes{Types: unsupported.Types})
		if err := s.ch.Reply(ev.Peer, resp); err != nil {
			s.log.Errorf("reply 420 to %v: %v", ev.Peer, err)
		}
		return
	}

	resp, err := s.handler.HandleBroken(ev.Peer, broken)
	if err != nil {
		s.log.Errorf("handle broken request from %v: %v", ev.Peer, err)
		return
	}
	if resp == nil {
		return
	}
	if err := s.ch.Reply(ev.Peer, resp); err != nil {
		s.log.Errorf("reply to %v: %v", ev.Peer, err)
	}
}
