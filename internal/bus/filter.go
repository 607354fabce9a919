package bus

// Filter selects the notifications a subscriber receives. Filters are
// comparable, so registering the same filter twice is a no-op.
type Filter struct {
	kind     Kind
	targeted bool
}

// All matches every broadcast and every notification targeted at the subscriber.
func All() Filter {
	return Filter{kind: KindAny}
}

// OfKind matches notifications carrying the given message kind.
func OfKind(kind Kind) Filter {
	return Filter{kind: kind}
}

// Targeted matches only notifications addressed to the subscriber.
func Targeted() Filter {
	return Filter{targeted: true}
}

func (f Filter) matches(n Notification, subscriberID string) bool {
	if f.targeted {
		return n.Target == subscriberID
	}

	// Directed notifications are not visible to other subscribers.
	if n.Target != "" && n.Target != subscriberID {
		return false
	}

	return f.kind == KindAny || f.kind == n.Kind()
}
