// Package stun implements the transaction-oriented core of a STUN (Session
// Traversal Utilities for NAT, RFC 5389) protocol engine.
//
// The package defines the wire message model (Message, RawAttribute,
// Class, Method), the attribute codec plug-in contract, and the closed
// error taxonomy shared by the codec, transport, channel and agent
// sub-packages. Socket I/O, retransmission, transaction correlation and
// the client/server dispatchers live in the sibling packages under this
// module (codec, timeoutqueue, transport, transport/retransmit, channel,
// agent).
package stun
