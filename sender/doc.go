// Package sender transmits datagrams to a unicast host or a multicast group.
//
// A Sender owns exactly one UDP socket for its whole lifetime. It is
// constructed once from an immutable Destination, used for any number of
// Send calls, and released with Close:
//
//	dest, err := sender.MulticastDestination("224.0.1.1", 30001)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := sender.New(dest, sender.WithTTL(1))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	n, err := s.Send(ctx, []byte("hello"))
//
// # Semantics
//
// Send is fire-and-forget: each call hands exactly one datagram to the
// operating system and returns. There is no acknowledgment, no retry and no
// framing; the payload is placed on the wire as-is. Whether a failed send
// is retried, logged or fatal is the caller's decision.
//
// For multicast destinations the TTL (hop limit for IPv6) is applied to the
// socket during New, before any datagram can leave. If the option cannot be
// applied, New fails with a *ConfigurationError rather than sending with
// the system default scope.
//
// Empty payloads are allowed and produce a zero-length datagram. Payloads
// larger than the UDP limit for the destination's address family fail with
// a *SendError whose Reason is ReasonMessageTooLarge; nothing is truncated.
//
// # Errors
//
//   - *ConfigurationError: invalid destination or option, from New
//   - *SendError: transmission failed (unreachable, too large, permission, timeout)
//   - *PartialSendError: the OS accepted fewer bytes than the payload
//   - *ClosedError: Send after Close
//
// # Concurrency
//
// A Sender may be shared between goroutines. Sends are serialized by an
// internal lock and issued to the OS in lock-acquisition order. UDP itself
// makes no ordering promise to receivers.
package sender
