// Package repo holds the in-memory stores. Each store owns one collection
// and guards it with its own lock; callers get copies, never references.
package repo

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Stores bundles one instance of every collection.
type Stores struct {
	Jobs         *JobStore
	Offers       *OfferStore
	Drafts       *DraftStore
	Bookings     *BookingStore
	Availability *AvailabilityStore
}

func NewStores() Stores {
	return Stores{
		Jobs:         NewJobStore(),
		Offers:       NewOfferStore(),
		Drafts:       NewDraftStore(),
		Bookings:     NewBookingStore(),
		Availability: NewAvailabilityStore(),
	}
}
