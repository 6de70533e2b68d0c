package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/blockledger"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/merkle"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/simulator"
)

type investorReport struct {
	Pipelines    []simulator.PipelineRun   `json:"pipelines"`
	Attacks      []simulator.AttackAttempt `json:"attacks"`
	Consensus    simulator.ConsensusReport `json:"consensus"`
	LLMCall      simulator.LLMCallReport   `json:"llmCall"`
	Verification blockledger.Verification  `json:"verification"`
	Blocks       []blockledger.Block       `json:"blocks"`
	Proof        merkle.InclusionProof     `json:"proof"`
	ProofValid   bool                      `json:"proofValid"`
}

// runInvestorCmd implements `helm-sim investor`: one pipeline run per
// category, every attack archetype, the advisor consensus and a model call,
// each recorded as a block, then the block ledger is verified.
func runInvestorCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("investor", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flags    commonFlags
		category string
		prove    int
	)
	flags.register(cmd)
	cmd.StringVar(&category, "category", string(policy.CategoryTravel), "Category for the model call")
	cmd.IntVar(&prove, "prove", -1, "Block whose Merkle inclusion proof to report (default: last)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, flags, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer e.close(ctx)

	ctx, end := e.track(ctx, "investor")
	defer end(nil)

	signer, err := e.cfg.NewSigner(e.hasher)
	if err != nil {
		return fail(stderr, end, err)
	}
	ledger := blockledger.New(e.hasher, signer,
		blockledger.WithWindow(e.cfg.MerkleWindow),
		blockledger.WithLogger(e.logger),
	)
	sim := simulator.New(ledger,
		simulator.WithLogger(e.logger),
		simulator.WithMetrics(e.provider.Metrics),
	)

	report, err := runInvestor(ctx, sim, policy.Category(category), prove)
	if err != nil {
		return fail(stderr, end, err)
	}

	if flags.jsonOutput {
		if err := writeJSON(stdout, report); err != nil {
			return fail(stderr, end, err)
		}
	} else {
		report.print(stdout)
	}
	if !report.Verification.Valid {
		return 1
	}
	return 0
}

func runInvestor(ctx context.Context, sim *simulator.Simulator, category policy.Category, prove int) (investorReport, error) {
	var r investorReport
	for _, c := range policy.Categories {
		run, err := sim.RunPipeline(ctx, c)
		if err != nil {
			return r, err
		}
		r.Pipelines = append(r.Pipelines, run)
	}
	for _, kind := range simulator.AttackKinds() {
		attempt, err := sim.SimulateAttack(ctx, kind)
		if err != nil {
			return r, err
		}
		r.Attacks = append(r.Attacks, attempt)
	}
	consensus, err := sim.RunAdvisorConsensus(ctx)
	if err != nil {
		return r, err
	}
	r.Consensus = consensus
	call, err := sim.RunLLMCall(ctx, category)
	if err != nil {
		return r, err
	}
	r.LLMCall = call
	v, err := sim.VerifyLedger(ctx)
	if err != nil {
		return r, err
	}
	r.Verification = v
	r.Blocks = sim.Ledger().Blocks()

	if prove < 0 {
		prove = len(r.Blocks) - 1
	}
	proof, err := sim.Ledger().Proof(ctx, prove)
	if err != nil {
		return r, err
	}
	r.Proof = proof
	r.ProofValid, err = merkle.VerifyInclusionProof(ctx, sim.Ledger().Hasher(), proof, r.Blocks[prove].MerkleRoot)
	if err != nil {
		return r, err
	}
	return r, nil
}

func (r investorReport) print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%sPIPELINES:%s\n", ColorBold+ColorCyan, ColorReset)
	for _, p := range r.Pipelines {
		_, _ = fmt.Fprintf(w, "  #%d %-10s %-6s %4dms\n", p.RunNumber, p.Category, p.Verdict, p.TotalLatencyMs)
	}
	_, _ = fmt.Fprintf(w, "%sATTACKS:%s\n", ColorBold+ColorCyan, ColorReset)
	for _, a := range r.Attacks {
		_, _ = fmt.Fprintf(w, "  %-22s %-8s %-8s %s\n", a.Kind, a.Verdict, a.Severity, a.Gate)
	}
	_, _ = fmt.Fprintf(w, "%sCONSENSUS:%s\n", ColorBold+ColorCyan, ColorReset)
	_, _ = fmt.Fprintf(w, "  approve %.2f  caution %.2f  reject %.2f  disagreement %.3f\n",
		r.Consensus.ApproveWeight, r.Consensus.CautionWeight, r.Consensus.RejectWeight, r.Consensus.DisagreementScore)
	_, _ = fmt.Fprintf(w, "  winner %s, requires %s\n", r.Consensus.Winner, r.Consensus.RequiredApproval)
	_, _ = fmt.Fprintf(w, "%sMODEL CALL:%s\n", ColorBold+ColorCyan, ColorReset)
	_, _ = fmt.Fprintf(w, "  %s %s %d+%d tokens, cost %s, %s\n",
		r.LLMCall.Category, r.LLMCall.Model, r.LLMCall.PromptTokens, r.LLMCall.CompletionTokens, r.LLMCall.Cost, r.LLMCall.Verdict)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "Blocks:       %d\n", len(r.Blocks))
	if n := len(r.Blocks); n > 0 {
		_, _ = fmt.Fprintf(w, "Merkle root:  %s\n", shortHash(r.Blocks[n-1].MerkleRoot))
	}
	_, _ = fmt.Fprintf(w, "Proof:        block %d, %d steps, valid=%t\n", r.Proof.LeafIndex, len(r.Proof.ProofPath), r.ProofValid)
	printVerdict(w, r.Verification.Valid, r.Verification.BrokenAt, r.Verification.Reason)
}
