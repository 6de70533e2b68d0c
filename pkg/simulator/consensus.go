package simulator

import (
	"context"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/blockledger"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
)

// Recommendations.
const (
	RecommendApprove = "APPROVE"
	RecommendCaution = "CAUTION"
	RecommendReject  = "REJECT"
)

// Required approval levels.
const (
	ApprovalMultiSig = "MULTI_SIG"
	ApprovalUser     = "USER"
	ApprovalNone     = "NONE"
)

// Disagreement thresholds for escalation.
const (
	multiSigThreshold = 0.35
	userThreshold     = 0.20
)

// AdvisorOpinion is one advisor's canned position.
type AdvisorOpinion struct {
	Role           string        `json:"role"`
	Recommendation string        `json:"recommendation"`
	Confidence     float64       `json:"confidence"`
	CostEstimate   budget.Amount `json:"costEstimate"`
	Rationale      string        `json:"rationale"`
	VoteWeight     float64       `json:"voteWeight"`
}

// ConsensusReport is the result of RunAdvisorConsensus.
type ConsensusReport struct {
	Advisors          []AdvisorOpinion   `json:"advisors"`
	ApproveWeight     float64            `json:"approveWeight"`
	CautionWeight     float64            `json:"cautionWeight"`
	RejectWeight      float64            `json:"rejectWeight"`
	DisagreementScore float64            `json:"disagreementScore"`
	Winner            string             `json:"winner"`
	RequiredApproval  string             `json:"requiredApproval"`
	Block             *blockledger.Block `json:"block,omitempty"`
}

var advisors = []AdvisorOpinion{
	{
		Role:           "cfo",
		Recommendation: RecommendApprove,
		Confidence:     0.82,
		CostEstimate:   budget.MustParse("1200.00"),
		Rationale:      "Spend fits the quarterly plan with margin to spare.",
		VoteWeight:     1.5,
	},
	{
		Role:           "risk_officer",
		Recommendation: RecommendCaution,
		Confidence:     0.74,
		CostEstimate:   budget.MustParse("1450.00"),
		Rationale:      "Counterparty concentration rises above the soft limit.",
		VoteWeight:     1.2,
	},
	{
		Role:           "compliance",
		Recommendation: RecommendApprove,
		Confidence:     0.91,
		CostEstimate:   budget.MustParse("1200.00"),
		Rationale:      "No sanctions or licensing issues found.",
		VoteWeight:     1.3,
	},
	{
		Role:           "operations",
		Recommendation: RecommendApprove,
		Confidence:     0.68,
		CostEstimate:   budget.MustParse("1275.00"),
		Rationale:      "Vendors confirmed capacity for the requested dates.",
		VoteWeight:     1.0,
	},
	{
		Role:           "legal",
		Recommendation: RecommendCaution,
		Confidence:     0.63,
		CostEstimate:   budget.MustParse("1350.00"),
		Rationale:      "Cancellation terms are one-sided; negotiate before signing.",
		VoteWeight:     1.1,
	},
	{
		Role:           "strategy",
		Recommendation: RecommendReject,
		Confidence:     0.57,
		CostEstimate:   budget.MustParse("1600.00"),
		Rationale:      "Better timing expected next quarter.",
		VoteWeight:     0.9,
	},
}

// Tally computes weights, disagreement, winner and required approval for
// a set of opinions.
//
// disagreement = caution / (approve + caution), 0 when both are 0. The
// winner maximises confidence × weight; ties go to the earlier advisor.
func Tally(opinions []AdvisorOpinion) ConsensusReport {
	report := ConsensusReport{Advisors: append([]AdvisorOpinion(nil), opinions...)}
	best := -1.0
	for _, o := range opinions {
		switch o.Recommendation {
		case RecommendApprove:
			report.ApproveWeight += o.VoteWeight
		case RecommendCaution:
			report.CautionWeight += o.VoteWeight
		case RecommendReject:
			report.RejectWeight += o.VoteWeight
		}
		if score := o.Confidence * o.VoteWeight; score > best {
			best = score
			report.Winner = o.Role
		}
	}
	if denom := report.ApproveWeight + report.CautionWeight; denom > 0 {
		report.DisagreementScore = report.CautionWeight / denom
	}
	switch {
	case report.DisagreementScore > multiSigThreshold:
		report.RequiredApproval = ApprovalMultiSig
	case report.DisagreementScore > userThreshold:
		report.RequiredApproval = ApprovalUser
	default:
		report.RequiredApproval = ApprovalNone
	}
	return report
}

// RunAdvisorConsensus tallies the six canned advisors and records one
// advisor_consensus block.
func (s *Simulator) RunAdvisorConsensus(ctx context.Context) (ConsensusReport, error) {
	report := Tally(advisors)
	b, err := s.record(ctx, EventConsensus, report)
	if err != nil {
		return ConsensusReport{}, err
	}
	report.Block = b
	return report, nil
}
