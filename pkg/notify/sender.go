package notify

import "context"

// Sender delivers a message over one channel. Implementations validate their
// required recipient field before any network call, make exactly one outbound
// attempt, and never retry internally - retries belong to the orchestrator.
type Sender interface {
	// Supports reports whether this sender handles the channel.
	Supports(channel Channel) bool

	// Send makes one delivery attempt and returns the provider message id
	// on success. Expected failures are typed: ErrValidation,
	// ErrTransientProvider, or ErrPermanentProvider wrapped with detail.
	Send(ctx context.Context, msg Message) (providerMessageID string, err error)
}

// senderFor returns the first sender supporting the channel, or nil.
func senderFor(senders []Sender, channel Channel) Sender {
	for _, s := range senders {
		if s.Supports(channel) {
			return s
		}
	}
	return nil
}
