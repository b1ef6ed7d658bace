package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/models"
)

// Block reasons surfaced on held stages and in notifications. These are
// stable identifiers; the admin UI keys display copy off them.
const (
	BlockPayoutsLocked    = "payouts_locked"
	BlockKYCNotVerified   = "kyc_not_verified"
	BlockPANRequired      = "pan_required"
	BlockIdentityMismatch = "identity_similarity_below_threshold"
	BlockMissingBank      = "missing_payout_bank_details"
	BlockPayoutHold       = "payout_hold"
	BlockDisputeOpen      = "dispute_open"
)

// Block is one failed payout gate. Details carry gate-specific context, such
// as the best similarity score and which instrument name produced it.
type Block struct {
	Reason  string
	Details string
}

// ComplianceService decides whether a recipient may receive funds. It is a
// pure read-side gate: it never mutates recipients, it only reports the first
// blocking condition in a fixed order so retried checks produce the same
// reason.
type ComplianceService struct {
	policy config.PolicyConfig
}

// NewComplianceService constructs a ComplianceService.
func NewComplianceService(policy config.PolicyConfig) *ComplianceService {
	return &ComplianceService{policy: policy}
}

// CheckRecipient returns nil when the recipient is clear to pay, or the first
// failed gate otherwise. Order: ops lock, KYC, PAN policy, identity match,
// bank details. A recipient without verified KYC still passes the KYC gate
// when PAN is verified together with a verified UPI or bank instrument.
func (s *ComplianceService) CheckRecipient(rec *models.Recipient) *Block {
	if rec.PayoutsLocked {
		return &Block{Reason: BlockPayoutsLocked}
	}
	if rec.KYCStatus != models.KYCVerified &&
		!(rec.PANVerified && (rec.UPIVerified || rec.BankVerified)) {
		return &Block{Reason: BlockKYCNotVerified}
	}
	if s.policy.RequirePAN && !rec.PANVerified {
		return &Block{Reason: BlockPANRequired}
	}
	if ok, best, source := s.identityCheck(rec); !ok {
		return &Block{
			Reason:  BlockIdentityMismatch,
			Details: fmt.Sprintf("best %.2f via %s", best, source),
		}
	}
	if !rec.HasBankDetails() {
		return &Block{Reason: BlockMissingBank}
	}
	return nil
}

// IdentityMatches reports whether the recipient's display name is consistent
// with at least one verified instrument name. A manual override or a provider
// score at or above the threshold passes without string comparison.
func (s *ComplianceService) IdentityMatches(rec *models.Recipient) bool {
	ok, _, _ := s.identityCheck(rec)
	return ok
}

// identityCheck runs the identity gate and reports the best score in [0,1]
// with the source that produced it, so blocks can record how close the
// recipient came and against which name.
func (s *ComplianceService) identityCheck(rec *models.Recipient) (bool, float64, string) {
	if rec.IdentityOverride {
		return true, 1, "override"
	}
	best, source := 0.0, "none"
	if rec.MatchScore != nil {
		score := *rec.MatchScore / 100
		if score >= s.policy.NameMatchThreshold {
			return true, score, "provider"
		}
		if score > best {
			best, source = score, "provider"
		}
	}
	candidates := []struct {
		name   *string
		source string
	}{
		{rec.PANName, "pan"},
		{rec.UPIName, "upi"},
		{rec.BankHolder, "bank"},
	}
	for _, c := range candidates {
		if c.name == nil || *c.name == "" {
			continue
		}
		score := NameSimilarity(rec.DisplayName, *c.name)
		if score >= s.policy.NameMatchThreshold {
			return true, score, c.source
		}
		if score > best {
			best, source = score, c.source
		}
	}
	return false, best, source
}

// NameSimilarity scores two names in [0,1] with a token-set Dice coefficient:
// 2*common / (len(a)+len(b)) over lowercased alphanumeric tokens. Token order
// and repeated tokens do not affect the score, so "Sharma Rahul" matches
// "Rahul Sharma" at 1.0.
func NameSimilarity(a, b string) float64 {
	ta := nameTokens(a)
	tb := nameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var common int
	for tok := range ta {
		if tb[tok] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

func nameTokens(name string) map[string]bool {
	tokens := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(name)) {
		f = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if f != "" {
			tokens[f] = true
		}
	}
	return tokens
}
