package listing

import "fmt"

// Entry is one monitored listing page.
type Entry struct {
	URL     string
	Address string
}

// Status is the availability classification of a listing page.
type Status int

const (
	Unknown Status = iota
	Available
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Bool returns the on-disk form of s: nil for Unknown.
func (s Status) Bool() *bool {
	switch s {
	case Available:
		b := true
		return &b
	case Unavailable:
		b := false
		return &b
	}
	return nil
}

// StatusOf is the inverse of Status.Bool.
func StatusOf(b *bool) Status {
	if b == nil {
		return Unknown
	}
	if *b {
		return Available
	}
	return Unavailable
}

type EventKind int

const (
	NewlyAvailable EventKind = iota
	BecameAvailable
	BecameUnavailable
)

func (k EventKind) String() string {
	switch k {
	case NewlyAvailable:
		return "newly-available"
	case BecameAvailable:
		return "became-available"
	case BecameUnavailable:
		return "became-unavailable"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ChangeEvent is an availability transition observed during one run.
type ChangeEvent struct {
	Address string
	URL     string
	Kind    EventKind
}
