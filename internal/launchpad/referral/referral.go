// =============================
// File: internal/launchpad/referral/referral.go
// =============================
package referral

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/fee"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// NodeStore resolves referral nodes named by the current request.
type NodeStore interface {
	// Node returns the node of owner, provisioning an uninitialized one if absent.
	Node(owner solana.PublicKey) (*state.UserInviteStats, error)
}

// LookupFunc reads a committed node without provisioning it.
type LookupFunc func(owner solana.PublicKey) (*state.UserInviteStats, bool)

// Ledger credits trade fees to referral nodes according to a fee schedule.
type Ledger struct {
	Schedule fee.Schedule
}

// NewLedger creates a ledger for schedule.
func NewLedger(schedule fee.Schedule) Ledger {
	return Ledger{Schedule: schedule}
}

// Initialize links user under parent. It is a no-op for an already initialized user
// and reports whether the node was initialized by this call.
func Initialize(nodes NodeStore, user, parent solana.PublicKey) (bool, error) {
	node, err := nodes.Node(user)
	if err != nil {
		return false, err
	}
	if node.IsInit {
		return false, nil
	}
	if parent.Equals(user) {
		return false, fmt.Errorf("%w: user %s cannot be its own parent", state.ErrInviteAccountError, user)
	}

	parentNode, err := nodes.Node(parent)
	if err != nil {
		return false, err
	}
	childCount, err := add(parentNode.ChildCount, 1, "child_count")
	if err != nil {
		return false, err
	}

	node.IsInit = true
	node.Key = user
	node.Parent = parent

	if !parentNode.IsInit {
		parentNode.IsInit = true
		parentNode.Key = parent
	}
	parentNode.ChildCount = childCount

	return true, nil
}

// CreditTradeFees splits the fee on tradeAmount and credits the protocol recipient,
// the curve creator and the trader's parent. The trader's node must be initialized.
func (l Ledger) CreditTradeFees(nodes NodeStore, tradeAmount uint64, protocolRecipient, creator, trader solana.PublicKey) (fee.Split, error) {
	split, err := l.Schedule.Split(tradeAmount)
	if err != nil {
		return fee.Split{}, err
	}

	traderNode, err := nodes.Node(trader)
	if err != nil {
		return fee.Split{}, err
	}
	if !traderNode.IsInit {
		return fee.Split{}, fmt.Errorf("%w: %s", state.ErrInviteAccountNotInit, trader)
	}

	protocolNode, err := nodes.Node(protocolRecipient)
	if err != nil {
		return fee.Split{}, err
	}
	if err := credit(&protocolNode.ProfitClaimable, split.Protocol, "protocol profit_claimable"); err != nil {
		return fee.Split{}, err
	}

	creatorNode, err := nodes.Node(creator)
	if err != nil {
		return fee.Split{}, err
	}
	if err := credit(&creatorNode.ProfitClaimable, split.Creator, "creator profit_claimable"); err != nil {
		return fee.Split{}, err
	}

	parentNode, err := nodes.Node(traderNode.Parent)
	if err != nil {
		return fee.Split{}, err
	}
	if err := credit(&parentNode.ProfitClaimable, split.Invite, "parent profit_claimable"); err != nil {
		return fee.Split{}, err
	}
	if err := credit(&parentNode.ProfitFromChild, split.Invite, "profit_from_child"); err != nil {
		return fee.Split{}, err
	}
	if err := credit(&traderNode.ProfitToParent, split.Invite, "profit_to_parent"); err != nil {
		return fee.Split{}, err
	}

	return split, nil
}

// Claim zeroes the claimable profit of owner and returns the amount to pay out.
func Claim(nodes NodeStore, owner solana.PublicKey) (uint64, error) {
	node, err := nodes.Node(owner)
	if err != nil {
		return 0, err
	}

	amount := node.ProfitClaimable
	if amount == 0 {
		return 0, fmt.Errorf("%w: %s", state.ErrNotClaimableFee, owner)
	}
	accumulated, err := add(node.ProfitClaimAccumulated, amount, "profit_claim_accumulated")
	if err != nil {
		return 0, err
	}

	node.ProfitClaimable = 0
	node.ProfitClaimAccumulated = accumulated
	return amount, nil
}

// Ancestors returns the parent chain of owner, nearest first, up to maxDepth links.
// A chain that revisits a node is reported as ErrReferralCycle.
func Ancestors(lookup LookupFunc, owner solana.PublicKey, maxDepth int) ([]solana.PublicKey, error) {
	visited := map[solana.PublicKey]struct{}{owner: {}}
	var chain []solana.PublicKey

	cur := owner
	for len(chain) < maxDepth {
		node, ok := lookup(cur)
		if !ok || !node.IsInit || node.Parent.IsZero() {
			break
		}
		if _, seen := visited[node.Parent]; seen {
			return chain, fmt.Errorf("%w: %s revisited", state.ErrReferralCycle, node.Parent)
		}
		visited[node.Parent] = struct{}{}
		chain = append(chain, node.Parent)
		cur = node.Parent
	}
	return chain, nil
}

func credit(field *uint64, amount uint64, name string) error {
	v, err := add(*field, amount, name)
	if err != nil {
		return err
	}
	*field = v
	return nil
}

func add(a, b uint64, name string) (uint64, error) {
	if a+b < a {
		return 0, fmt.Errorf("%w: %s", state.ErrArithmeticOverflow, name)
	}
	return a + b, nil
}
