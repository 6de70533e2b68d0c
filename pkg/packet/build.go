package packet

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/world"
)

var packetNamespace = uuid.MustParse("0b7a4c2e-91d3-5f6a-8e2b-4c1d9a7f3e55")

// builders produce the scripted initial packet for each category.
var builders = map[policy.Category]func(world.Catalog) (*Packet, error){
	policy.CategoryTravel:    buildTravel,
	policy.CategoryGifts:     buildGifts,
	policy.CategoryLeads:     buildLeads,
	policy.CategoryInsurance: buildInsurance,
	policy.CategoryInvesting: buildInvesting,
}

func newPacket(category policy.Category, anchor, title, summary string, data interface{}) (*Packet, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("packet: encode %s data: %w", category, err)
	}
	return &Packet{
		ID:       uuid.NewSHA1(packetNamespace, []byte(string(category)+"/"+anchor)).String(),
		Category: category,
		Title:    title,
		Summary:  summary,
		Data:     raw,
		Status:   StatusPending,
	}, nil
}

func (p *Packet) addStep(description string, risk policy.RiskTier, cost budget.Amount, reversible bool) {
	p.Steps = append(p.Steps, policy.PlanStep{
		ID:          fmt.Sprintf("%s-%d", p.Category, len(p.Steps)+1),
		Category:    p.Category,
		Description: description,
		Risk:        risk,
		Cost:        cost,
		Reversible:  reversible,
	})
}

func (p *Packet) requestApproval(prompt string, options []Option) {
	p.Approvals = append(p.Approvals, ApprovalRequest{
		ID:      fmt.Sprintf("%s-approval-%d", p.Category, len(p.Approvals)+1),
		Prompt:  prompt,
		Options: options,
	})
	p.Status = StatusAwaitingApproval
}

func dollars(a budget.Amount) string {
	return "$" + a.String()
}

func buildTravel(c world.Catalog) (*Packet, error) {
	if len(c.Itineraries) == 0 {
		return nil, fmt.Errorf("packet: catalog has no itineraries")
	}
	best := c.Itineraries[0]
	p, err := newPacket(policy.CategoryTravel, best.ID,
		fmt.Sprintf("Trip to %s", best.Destination),
		fmt.Sprintf("%d nights in %s, flying %s from %s", best.Nights, best.Destination, best.Airline, best.Origin),
		c.Itineraries)
	if err != nil {
		return nil, err
	}
	p.addStep(fmt.Sprintf("Hold %s flight %s to %s", best.Airline, best.Origin, best.Destination), policy.RiskMedium, best.FlightCost, true)
	p.addStep(fmt.Sprintf("Reserve %d nights at %s", best.Nights, best.Hotel), policy.RiskLow, best.HotelCost, true)
	p.addStep("Add trip to calendar", policy.RiskLow, 0, true)

	options := make([]Option, len(c.Itineraries))
	for i, it := range c.Itineraries {
		options[i] = Option{
			ID:         it.ID,
			Label:      fmt.Sprintf("%s + %s, %d nights in %s", it.Airline, it.Hotel, it.Nights, it.Destination),
			PriceDelta: it.TotalCost - best.TotalCost,
		}
	}
	p.requestApproval("Choose an itinerary to book", options)
	p.Narrative = []string{
		fmt.Sprintf("Compared %d itineraries departing %s.", len(c.Itineraries), best.Origin),
		fmt.Sprintf("Recommended %s with %s at %s total.", best.Airline, best.Hotel, dollars(best.TotalCost)),
	}
	return p, nil
}

func buildGifts(c world.Catalog) (*Packet, error) {
	if len(c.Gifts) == 0 {
		return nil, fmt.Errorf("packet: catalog has no gift options")
	}
	best := c.Gifts[0]
	p, err := newPacket(policy.CategoryGifts, best.ID,
		fmt.Sprintf("%s gift for %s", best.Occasion, best.Recipient),
		fmt.Sprintf("Send %s, arriving in %d days", best.Item, best.DeliveryDays),
		c.Gifts)
	if err != nil {
		return nil, err
	}
	p.addStep(fmt.Sprintf("Purchase %s", best.Item), policy.RiskLow, best.Price, true)
	p.addStep(fmt.Sprintf("Ship to %s with a card", best.Recipient), policy.RiskMedium, 0, false)

	n := len(c.Gifts)
	if n > 3 {
		n = 3
	}
	options := make([]Option, n)
	for i, g := range c.Gifts[:n] {
		options[i] = Option{
			ID:         g.ID,
			Label:      fmt.Sprintf("%s (%s)", g.Item, dollars(g.Price)),
			PriceDelta: g.Price - best.Price,
		}
	}
	p.requestApproval("Pick a gift", options)
	p.Narrative = []string{
		fmt.Sprintf("Shortlisted %d gifts for %s's %s.", n, best.Recipient, best.Occasion),
	}
	return p, nil
}

// buildLeads models background work: the packet is complete at
// construction and asks for nothing.
func buildLeads(c world.Catalog) (*Packet, error) {
	if len(c.Leads) == 0 {
		return nil, fmt.Errorf("packet: catalog has no leads")
	}
	top := c.Leads[0]
	for _, l := range c.Leads[1:] {
		if l.Score > top.Score {
			top = l
		}
	}
	p, err := newPacket(policy.CategoryLeads, c.Leads[0].ID,
		"Inbound leads triaged",
		fmt.Sprintf("%d leads scored; top is %s at %s", len(c.Leads), top.Name, top.Company),
		c.Leads)
	if err != nil {
		return nil, err
	}
	p.addStep(fmt.Sprintf("Score %d inbound leads", len(c.Leads)), policy.RiskLow, 0, true)
	p.addStep(fmt.Sprintf("Draft follow-up to %s", top.Name), policy.RiskLow, 0, true)
	for _, step := range p.Steps {
		p.Results = append(p.Results, ExecutionResult{
			StepID:  step.ID,
			Action:  "background",
			Summary: step.Description,
		})
	}
	p.Status = StatusExecuted
	p.Narrative = []string{
		fmt.Sprintf("Scored %d leads overnight.", len(c.Leads)),
		fmt.Sprintf("%s (%s, %s) scored %d via %s.", top.Name, top.Title, top.Company, top.Score, top.Channel),
	}
	return p, nil
}

func buildInsurance(c world.Catalog) (*Packet, error) {
	if len(c.Quotes) == 0 {
		return nil, fmt.Errorf("packet: catalog has no insurance quotes")
	}
	best := c.Quotes[0]
	for _, q := range c.Quotes[1:] {
		if q.MonthlyPremium < best.MonthlyPremium {
			best = q
		}
	}
	p, err := newPacket(policy.CategoryInsurance, c.Quotes[0].ID,
		fmt.Sprintf("%s coverage", best.Plan),
		fmt.Sprintf("%s %s at %s/month", best.Provider, best.Plan, dollars(best.MonthlyPremium)),
		c.Quotes)
	if err != nil {
		return nil, err
	}
	p.addStep(fmt.Sprintf("Compare %d quotes", len(c.Quotes)), policy.RiskLow, 0, true)
	p.addStep(fmt.Sprintf("Bind %s with %s", best.Plan, best.Provider), policy.RiskHigh, best.MonthlyPremium, false)

	options := make([]Option, len(c.Quotes))
	for i, q := range c.Quotes {
		options[i] = Option{
			ID:         q.ID,
			Label:      fmt.Sprintf("%s %s, %s deductible", q.Provider, q.Plan, dollars(q.Deductible)),
			PriceDelta: q.MonthlyPremium - best.MonthlyPremium,
		}
	}
	p.requestApproval("Choose a policy to bind", options)
	p.Narrative = []string{
		fmt.Sprintf("Collected %d quotes.", len(c.Quotes)),
		fmt.Sprintf("Lowest premium is %s from %s.", dollars(best.MonthlyPremium), best.Provider),
	}
	return p, nil
}

func buildInvesting(c world.Catalog) (*Packet, error) {
	if len(c.Investments) == 0 {
		return nil, fmt.Errorf("packet: catalog has no investment opportunities")
	}
	best := c.Investments[0]
	for _, o := range c.Investments[1:] {
		if o.ExpectedReturnBps > best.ExpectedReturnBps {
			best = o
		}
	}
	p, err := newPacket(policy.CategoryInvesting, c.Investments[0].ID,
		fmt.Sprintf("Allocate to %s", best.Name),
		fmt.Sprintf("%s, expected %d.%02d%% a year", best.Kind, best.ExpectedReturnBps/100, best.ExpectedReturnBps%100),
		c.Investments)
	if err != nil {
		return nil, err
	}
	p.addStep("Review portfolio exposure", policy.RiskLow, 0, true)
	p.addStep(fmt.Sprintf("Commit minimum to %s", best.Name), best.Risk, best.Minimum, false)

	options := make([]Option, len(c.Investments))
	for i, o := range c.Investments {
		options[i] = Option{
			ID:         o.ID,
			Label:      fmt.Sprintf("%s (%s, %s risk)", o.Name, o.Kind, o.Risk),
			PriceDelta: o.Minimum - best.Minimum,
		}
	}
	p.requestApproval("Choose an allocation", options)
	p.Narrative = []string{
		fmt.Sprintf("Screened %d opportunities.", len(c.Investments)),
	}
	return p, nil
}
