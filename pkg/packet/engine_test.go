package packet_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/prng"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/world"
)

func founder() policy.Settings {
	return policy.Settings{
		Persona:   "founder",
		Stress:    policy.StressCalm,
		Autonomy:  policy.AutonomyExecuteWithApproval,
		BudgetCap: budget.MustParse("5.00"),
	}
}

func newEngine(t *testing.T, seed uint32) *packet.Engine {
	t.Helper()
	catalog := world.Generate(prng.New(seed), world.DefaultText())
	e, err := packet.Construct(catalog, founder())
	require.NoError(t, err)
	return e
}

func packetFor(t *testing.T, e *packet.Engine, c policy.Category) packet.Packet {
	t.Helper()
	for _, p := range e.Packets() {
		if p.Category == c {
			return p
		}
	}
	t.Fatalf("no packet for %s", c)
	return packet.Packet{}
}

func TestConstruct_OnePacketPerCategory(t *testing.T) {
	e := newEngine(t, 42)
	packets := e.Packets()
	require.Len(t, packets, 5)

	seen := map[policy.Category]bool{}
	for _, p := range packets {
		seen[p.Category] = true
		assert.Len(t, p.Checks, len(p.Steps), "one check per step in %s", p.Category)
		if p.Category == policy.CategoryLeads {
			assert.Equal(t, packet.StatusExecuted, p.Status)
			assert.Empty(t, p.Approvals)
			assert.Len(t, p.Results, len(p.Steps))
			continue
		}
		assert.Equal(t, packet.StatusAwaitingApproval, p.Status, p.Category)
		require.NotEmpty(t, p.Approvals)
		assert.NotEmpty(t, p.Approvals[0].Options)
	}
	for _, c := range policy.Categories {
		assert.True(t, seen[c], c)
	}
	assert.Equal(t, budget.Amount(0), e.Spent())
}

func TestConstruct_EngineOptions(t *testing.T) {
	ev, err := policy.NewEvaluator()
	require.NoError(t, err)
	book := receipts.NewBook(digest.BLAKE3())
	opts := []packet.EngineOption{
		packet.WithEvaluator(ev),
		packet.WithBook(book),
		packet.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}

	catalog := world.Generate(prng.New(42), world.DefaultText())
	e, err := packet.Construct(catalog, founder(), opts...)
	require.NoError(t, err)

	travel := packetFor(t, e, policy.CategoryTravel)
	require.NotEmpty(t, travel.Approvals[0].Options)
	_, err = e.Apply(context.Background(), packet.Approve{PacketID: travel.ID, OptionID: travel.Approvals[0].Options[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, book.Len())
}

func TestConstruct_Deterministic(t *testing.T) {
	assert.Equal(t, newEngine(t, 7).Packets(), newEngine(t, 7).Packets())
	assert.NotEqual(t, newEngine(t, 7).Packets()[0].ID, newEngine(t, 8).Packets()[0].ID)
}

func TestApprove_ExecutesAndMintsReceipt(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 42)
	travel := packetFor(t, e, policy.CategoryTravel)
	first := travel.Approvals[0].Options[0]

	out, err := e.Apply(ctx, packet.Approve{PacketID: travel.ID, OptionID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, packet.OutcomeApplied, out.Status)
	require.NotNil(t, out.Receipt)
	assert.Equal(t, 0, out.Receipt.ChainIndex)
	assert.Len(t, out.Receipt.Hash, 64)
	require.Len(t, out.Effects, 2)
	assert.Equal(t, audit.EventPacketExecuted, out.Effects[0].Type)
	assert.Equal(t, audit.EventReceiptIssued, out.Effects[1].Type)

	after := packetFor(t, e, policy.CategoryTravel)
	assert.Equal(t, packet.StatusExecuted, after.Status)
	assert.Len(t, after.Results, len(after.Steps))
	assert.Len(t, after.Receipts, 1)
	assert.Equal(t, travel.Cost(), e.Spent())
	assert.Equal(t, 1, e.Book().Len())

	again, err := e.Apply(ctx, packet.Approve{PacketID: travel.ID})
	require.NoError(t, err)
	assert.Equal(t, packet.OutcomeIgnored, again.Status)
	assert.Equal(t, 1, e.Book().Len())
}

func TestApprove_DefaultOptionAndRechecks(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 42)
	gifts := packetFor(t, e, policy.CategoryGifts)

	out, err := e.Apply(ctx, packet.Approve{PacketID: gifts.ID})
	require.NoError(t, err)
	require.Equal(t, packet.OutcomeApplied, out.Status)

	executed := packetFor(t, e, policy.CategoryGifts)
	assert.Equal(t, gifts.Approvals[0].Options[0].ID, executed.Results[0].OptionID)

	insurance := packetFor(t, e, policy.CategoryInsurance)
	want := budget.Remaining(founder().BudgetCap, e.Spent())
	assert.Equal(t, want, insurance.Checks[0].Remaining)
}

func TestApply_InvalidIntentsIgnored(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 42)
	before := e.Packets()
	travel := packetFor(t, e, policy.CategoryTravel)
	leads := packetFor(t, e, policy.CategoryLeads)

	for name, in := range map[string]packet.Intent{
		"unknown packet":   packet.Approve{PacketID: "nope"},
		"unknown option":   packet.Approve{PacketID: travel.ID, OptionID: "nope"},
		"pre-executed":     packet.Approve{PacketID: leads.ID},
		"deny unknown":     packet.Deny{PacketID: "nope"},
		"deny executed":    packet.Deny{PacketID: leads.ID},
		"unknown category": packet.DrillDown{Category: "pets"},
		"invalid autonomy": packet.ChangeSettings{Patch: policy.SettingsPatch{Autonomy: autonomyPtr("everything")}},
	} {
		out, err := e.Apply(ctx, in)
		require.NoError(t, err, name)
		assert.Equal(t, packet.OutcomeIgnored, out.Status, name)
		assert.NotEmpty(t, out.Reason, name)
	}
	assert.Equal(t, before, e.Packets())
	assert.Equal(t, budget.Amount(0), e.Spent())
}

func autonomyPtr(a policy.Autonomy) *policy.Autonomy { return &a }

func TestDeny(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 42)
	ins := packetFor(t, e, policy.CategoryInsurance)

	out, err := e.Apply(ctx, packet.Deny{PacketID: ins.ID})
	require.NoError(t, err)
	assert.Equal(t, packet.OutcomeApplied, out.Status)
	assert.Equal(t, packet.StatusDenied, packetFor(t, e, policy.CategoryInsurance).Status)
	assert.Equal(t, 0, e.Book().Len())
	assert.Equal(t, budget.Amount(0), e.Spent())

	out, err = e.Apply(ctx, packet.Approve{PacketID: ins.ID})
	require.NoError(t, err)
	assert.Equal(t, packet.OutcomeIgnored, out.Status)
}

func TestChangeSettings_RecomputesWithoutStatusChange(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 42)
	before := e.Packets()

	delegated := policy.AutonomyDelegated
	bigCap := budget.MustParse("100000")
	out, err := e.Apply(ctx, packet.ChangeSettings{Patch: policy.SettingsPatch{Autonomy: &delegated, BudgetCap: &bigCap}})
	require.NoError(t, err)
	assert.Equal(t, packet.OutcomeApplied, out.Status)
	assert.Equal(t, delegated, e.Settings().Autonomy)
	assert.Equal(t, "founder", e.Settings().Persona)

	after := e.Packets()
	for i := range after {
		assert.Equal(t, before[i].Status, after[i].Status)
		for _, c := range after[i].Checks {
			assert.Equal(t, delegated, c.Autonomy)
			assert.True(t, c.Allowed)
		}
	}
}

func TestDrillDown(t *testing.T) {
	e := newEngine(t, 42)
	assert.Equal(t, policy.Category(""), e.ActiveCategory())
	_, err := e.Apply(context.Background(), packet.DrillDown{Category: policy.CategoryInvesting})
	require.NoError(t, err)
	assert.Equal(t, policy.CategoryInvesting, e.ActiveCategory())
}

func TestRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 42)
	travel := packetFor(t, e, policy.CategoryTravel)
	_, err := e.Apply(ctx, packet.Approve{PacketID: travel.ID})
	require.NoError(t, err)

	restored, err := packet.Restore(e.State())
	require.NoError(t, err)
	assert.Equal(t, e.State(), restored.State())

	v, err := restored.Book().Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestDecodeIntent(t *testing.T) {
	lookup := func(c policy.Category) (string, bool) { return "pkt-" + string(c), true }

	in, err := packet.DecodeIntent([]byte(`{"type":"approve","category":"travel","optionId":"o1"}`), lookup)
	require.NoError(t, err)
	assert.Equal(t, packet.Approve{PacketID: "pkt-travel", OptionID: "o1"}, in)

	in, err = packet.DecodeIntent([]byte(`{"type":"change_settings","patch":{"stressLevel":"busy"}}`), lookup)
	require.NoError(t, err)
	cs, ok := in.(packet.ChangeSettings)
	require.True(t, ok)
	require.NotNil(t, cs.Patch.Stress)
	assert.Equal(t, policy.StressBusy, *cs.Patch.Stress)

	_, err = packet.DecodeIntent([]byte(`{"type":"teleport"}`), nil)
	assert.ErrorIs(t, err, packet.ErrUnknownIntent)

	assert.Equal(t, audit.EventIntentApprove, packet.KindApprove.EventType())
	assert.Equal(t, audit.EventIntentChangeSettings, packet.KindChangeSettings.EventType())
}
