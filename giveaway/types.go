package giveaway

import (
	"fmt"
	"strings"

	"github.com/bitfsorg/libgiveaway-go/ledger"
)

// Status is the lifecycle state of a giveaway.
type Status uint8

const (
	Draft Status = iota
	Active
	Closed
	Cancelled
)

var statusNames = [...]string{"draft", "active", "closed", "cancelled"}

// String returns the lowercase status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool { return s <= Cancelled }

// settable reports whether the owner may move to s with SetStatus.
// Cancelled is only reachable through CancelGiveaway, which refunds.
func (s Status) settable() bool { return s <= Closed }

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if strings.EqualFold(name, n) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
}

// Params describes a giveaway at creation time.
type Params struct {
	ShareAmount    uint64 // tokens per recipient
	RecipientCount uint64 // number of shares in the pool
	Slug           string // unique, URL-safe identifier
	Description    string
	SocialLinks    string
	Banner         string // the only field mutable after creation
	ColorTheme     string
}

// Deployment binds Params to the accounts and token of one instance.
type Deployment struct {
	Address ledger.Address // escrow holding the pool
	Owner   ledger.Address
	Token   ledger.Token
	Index   uint64 // position in the owning registry
	Params
}

// Record is the persisted state of a giveaway. Address sets are sorted.
type Record struct {
	Address        ledger.Address
	Owner          ledger.Address
	TokenID        string
	Index          uint64
	Params         Params
	Status         Status
	ClaimedCount   uint64
	Authenticated  []ledger.Address
	Claimed        []ledger.Address
	UsedIdentities []Fingerprint
}
