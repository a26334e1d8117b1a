// Package identity gives every offer a key that stays stable across
// monitor cycles even though the source exposes no durable offer ID.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"

	"flight-deals-bot/models"
)

// Key derives the identity key of an offer from its stable fields:
// destination, outbound date, return date and price amount. Two offers
// agreeing on all four always hash to the same key, regardless of run,
// insertion order or environment.
//
// Price is deliberately part of the key: a price change shows up as a
// new record while the old one goes stale. Changing that would change
// what counts as "a new deal" for every user, so treat any move to a
// source-provided identifier as a breaking schema change.
func Key(o *models.Offer) string {
	amount := ""
	if o.Amount != nil {
		amount = strconv.FormatFloat(*o.Amount, 'f', -1, 64)
	}
	sum := sha1.Sum([]byte(o.Destination + "|" + o.GoDate + "|" + o.BackDate + "|" + amount))
	return hex.EncodeToString(sum[:])[:16]
}

// Changed reports whether a re-observed offer differs from the stored
// field values in anything a user can see. Bookkeeping timestamps are
// not part of the comparison; the fields inside the key cannot differ
// between two offers sharing it.
func Changed(old, fresh *models.Offer) bool {
	if old.Name != fresh.Name ||
		old.Origin != fresh.Origin ||
		old.Provider != fresh.Provider ||
		old.Link != fresh.Link ||
		old.Currency != fresh.Currency ||
		old.GoDepart != fresh.GoDepart ||
		old.GoArrive != fresh.GoArrive ||
		old.BackDepart != fresh.BackDepart ||
		old.BackArrive != fresh.BackArrive ||
		old.ItemID != fresh.ItemID ||
		old.SubItemID != fresh.SubItemID {
		return true
	}
	if (old.Seats == nil) != (fresh.Seats == nil) {
		return true
	}
	if old.Seats != nil && *old.Seats != *fresh.Seats {
		return true
	}
	return false
}
