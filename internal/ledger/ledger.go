// Package ledger applies inventory adjustment operations to per-location
// stock records. Every function is a pure computation over its inputs:
// validation happens before any field is touched, the caller's record is
// never mutated, and each successful operation yields exactly one audit
// entry. Persistence, locking and retries belong to the caller.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity            = errors.New("quantity must be greater than 0")
	ErrInsufficientAvailableStock = errors.New("insufficient available stock")
	ErrInsufficientReservedStock  = errors.New("insufficient reserved stock")
	ErrNoStockAtSource            = errors.New("no stock record at source location")
	ErrSameLocationTransfer       = errors.New("cannot transfer to the same location")
)

type EntryType string

const (
	EntryInitialStock EntryType = "initial_stock"
	EntryDamage       EntryType = "damage"
	EntryReserve      EntryType = "reserve"
	EntryUnreserve    EntryType = "unreserve"
	EntryTransfer     EntryType = "transfer"
	EntrySale         EntryType = "sale"
)

// Channel records the provenance of an adjustment.
const (
	ChannelManual = "manual"
	ChannelOnline = "online"
	ChannelSystem = "system"
)

// Record is the stock position of one variant at one location. Sold is a
// cumulative historical counter and is not subtracted from OnHand.
type Record struct {
	Location  string
	OnHand    int
	Available int
	Reserved  int
	Damaged   int
	Sold      int
}

// Entry is one append-only audit record. Quantity is signed: negative for
// decreases from the acting location's perspective.
type Entry struct {
	ID       string
	Date     time.Time
	Type     EntryType
	Quantity int
	Reason   string
	Channel  string
	Details  string
}

func newEntry(t EntryType, qty int, reason, channel, details string) Entry {
	return Entry{
		ID:       uuid.NewString(),
		Date:     time.Now().UTC(),
		Type:     t,
		Quantity: qty,
		Reason:   reason,
		Channel:  channel,
		Details:  details,
	}
}

// Add receives quantity units into a location, increasing both on-hand and
// available stock. Used for initial stock and restocks.
func Add(rec Record, qty int, reason, channel string) (Record, Entry, error) {
	if qty <= 0 {
		return rec, Entry{}, ErrInvalidQuantity
	}
	rec.OnHand += qty
	rec.Available += qty
	return rec, newEntry(EntryInitialStock, qty, reason, channel, ""), nil
}

// Damage writes off quantity units from available stock.
func Damage(rec Record, qty int, reason, channel string) (Record, Entry, error) {
	if qty <= 0 {
		return rec, Entry{}, ErrInvalidQuantity
	}
	if rec.Available < qty {
		return rec, Entry{}, ErrInsufficientAvailableStock
	}
	rec.Available -= qty
	rec.Damaged += qty
	return rec, newEntry(EntryDamage, -qty, reason, channel, ""), nil
}

// Reserve holds quantity units against a pending commitment.
func Reserve(rec Record, qty int, reason, channel string) (Record, Entry, error) {
	if qty <= 0 {
		return rec, Entry{}, ErrInvalidQuantity
	}
	if rec.Available < qty {
		return rec, Entry{}, ErrInsufficientAvailableStock
	}
	rec.Available -= qty
	rec.Reserved += qty
	return rec, newEntry(EntryReserve, -qty, reason, channel, ""), nil
}

// Unreserve releases a previous hold back to available stock.
func Unreserve(rec Record, qty int, reason, channel string) (Record, Entry, error) {
	if qty <= 0 {
		return rec, Entry{}, ErrInvalidQuantity
	}
	if rec.Reserved < qty {
		return rec, Entry{}, ErrInsufficientReservedStock
	}
	rec.Reserved -= qty
	rec.Available += qty
	return rec, newEntry(EntryUnreserve, qty, reason, channel, ""), nil
}

// Transfer moves quantity units of available stock between locations. A nil
// destination means no record exists there yet and one is created. The
// convention is a single audit entry from the source perspective whose
// Details names both locations.
func Transfer(from Record, to *Record, toLocation string, qty int, reason, channel string) (Record, Record, Entry, error) {
	if qty <= 0 {
		return from, Record{}, Entry{}, ErrInvalidQuantity
	}
	if from.Location == "" {
		return from, Record{}, Entry{}, ErrNoStockAtSource
	}
	if from.Location == toLocation {
		return from, Record{}, Entry{}, ErrSameLocationTransfer
	}
	if from.Available < qty {
		return from, Record{}, Entry{}, ErrInsufficientAvailableStock
	}

	from.OnHand -= qty
	from.Available -= qty

	var dest Record
	if to == nil {
		dest = Record{Location: toLocation, OnHand: qty, Available: qty}
	} else {
		dest = *to
		dest.OnHand += qty
		dest.Available += qty
	}

	details := fmt.Sprintf("From %s to %s", from.Location, dest.Location)
	return from, dest, newEntry(EntryTransfer, -qty, reason, channel, details), nil
}
