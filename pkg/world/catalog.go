// Package world generates the synthetic domain data a session acts on. A
// catalog is produced once from the session's seeded stream and never
// changes afterwards.
package world

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/prng"
)

// Catalog sizes.
const (
	LeadCount       = 6
	QuoteCount      = 4
	GiftCount       = 5
	ItineraryCount  = 3
	InvestmentCount = 4
)

// recordNamespace scopes the deterministic record ids.
var recordNamespace = uuid.MustParse("6f1d2b7e-3c44-5a8e-9b1f-2d7c0e4a9f10")

type Lead struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Company   string        `json:"company"`
	Title     string        `json:"title"`
	Channel   string        `json:"channel"`
	Score     int           `json:"score"`
	DealValue budget.Amount `json:"dealValue"`
}

type InsuranceQuote struct {
	ID             string        `json:"id"`
	Provider       string        `json:"provider"`
	Plan           string        `json:"plan"`
	MonthlyPremium budget.Amount `json:"monthlyPremium"`
	Deductible     budget.Amount `json:"deductible"`
	CoverageLimit  budget.Amount `json:"coverageLimit"`
	Rating         int           `json:"rating"` // tenths of a star, 30..50
}

type GiftOption struct {
	ID           string        `json:"id"`
	Item         string        `json:"item"`
	Recipient    string        `json:"recipient"`
	Occasion     string        `json:"occasion"`
	Price        budget.Amount `json:"price"`
	DeliveryDays int           `json:"deliveryDays"`
}

type TravelItinerary struct {
	ID          string        `json:"id"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Airline     string        `json:"airline"`
	Hotel       string        `json:"hotel"`
	Nights      int           `json:"nights"`
	DepartInDay int           `json:"departInDays"`
	FlightCost  budget.Amount `json:"flightCost"`
	HotelCost   budget.Amount `json:"hotelCost"`
	TotalCost   budget.Amount `json:"totalCost"`
}

type InvestmentOpportunity struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Kind              string          `json:"kind"`
	ExpectedReturnBps int             `json:"expectedReturnBps"`
	Risk              policy.RiskTier `json:"risk"`
	Minimum           budget.Amount   `json:"minimum"`
}

// Catalog is the full set of generated domain data.
type Catalog struct {
	Leads       []Lead                  `json:"leads"`
	Quotes      []InsuranceQuote        `json:"insuranceQuotes"`
	Gifts       []GiftOption            `json:"giftOptions"`
	Itineraries []TravelItinerary       `json:"travelItineraries"`
	Investments []InvestmentOpportunity `json:"investmentOpportunities"`
}

// Generate builds a catalog. Lists are generated in a fixed order so the
// stream is consumed identically for a given seed.
func Generate(s *prng.Stream, text TextCatalog) Catalog {
	g := generator{s: s, text: text}
	return Catalog{
		Leads:       g.leads(),
		Quotes:      g.quotes(),
		Gifts:       g.gifts(),
		Itineraries: g.itineraries(),
		Investments: g.investments(),
	}
}

type generator struct {
	s    *prng.Stream
	text TextCatalog
}

func (g generator) id(kind string, i int) string {
	salt := g.s.Int(0, 1<<30)
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s/%d/%d", kind, i, salt))).String()
}

func (g generator) money(minCents, maxCents int) budget.Amount {
	return budget.Amount(g.s.Int(minCents, maxCents)) * (budget.Unit / 100)
}

func (g generator) leads() []Lead {
	out := make([]Lead, LeadCount)
	names := prng.Shuffle(g.s, g.text.LeadNames)
	for i := range out {
		out[i] = Lead{
			ID:        g.id("lead", i),
			Name:      names[i%len(names)],
			Company:   prng.Pick(g.s, g.text.Companies),
			Title:     prng.Pick(g.s, g.text.Titles),
			Channel:   prng.Pick(g.s, g.text.Channels),
			Score:     g.s.Int(35, 98),
			DealValue: g.money(500_000, 12_000_000),
		}
	}
	return out
}

func (g generator) quotes() []InsuranceQuote {
	out := make([]InsuranceQuote, QuoteCount)
	for i := range out {
		plan := g.text.InsurancePlans[i%len(g.text.InsurancePlans)]
		out[i] = InsuranceQuote{
			ID:             g.id("quote", i),
			Provider:       prng.Pick(g.s, g.text.Insurers),
			Plan:           plan,
			MonthlyPremium: g.money(4_500+i*2_000, 9_000+i*4_000),
			Deductible:     g.money(25_000, 250_000),
			CoverageLimit:  g.money(10_000_000, 100_000_000),
			Rating:         g.s.Int(30, 50),
		}
	}
	return out
}

func (g generator) gifts() []GiftOption {
	out := make([]GiftOption, GiftCount)
	items := prng.Shuffle(g.s, g.text.GiftItems)
	recipient := prng.Pick(g.s, g.text.Recipients)
	occasion := prng.Pick(g.s, g.text.Occasions)
	for i := range out {
		out[i] = GiftOption{
			ID:           g.id("gift", i),
			Item:         items[i%len(items)],
			Recipient:    recipient,
			Occasion:     occasion,
			Price:        g.money(2_500, 30_000),
			DeliveryDays: g.s.Int(1, 7),
		}
	}
	return out
}

func (g generator) itineraries() []TravelItinerary {
	out := make([]TravelItinerary, ItineraryCount)
	cities := prng.Shuffle(g.s, g.text.Cities)
	origin := cities[0]
	for i := range out {
		nights := g.s.Int(2, 6)
		flight := g.money(18_000, 140_000)
		hotel := g.money(9_000, 42_000) * budget.Amount(nights)
		out[i] = TravelItinerary{
			ID:          g.id("itinerary", i),
			Origin:      origin,
			Destination: cities[1+i%(len(cities)-1)],
			Airline:     prng.Pick(g.s, g.text.Airlines),
			Hotel:       prng.Pick(g.s, g.text.Hotels),
			Nights:      nights,
			DepartInDay: g.s.Int(3, 45),
			FlightCost:  flight,
			HotelCost:   hotel,
			TotalCost:   flight + hotel,
		}
	}
	return out
}

var investmentRisk = map[string]policy.RiskTier{
	"index_fund":  policy.RiskLow,
	"bonds":       policy.RiskLow,
	"real_estate": policy.RiskMedium,
	"venture":     policy.RiskHigh,
}

func (g generator) investments() []InvestmentOpportunity {
	out := make([]InvestmentOpportunity, InvestmentCount)
	funds := prng.Shuffle(g.s, g.text.Funds)
	for i := range out {
		kind := prng.Pick(g.s, g.text.InvestmentKinds)
		risk, ok := investmentRisk[kind]
		if !ok {
			risk = policy.RiskMedium
		}
		out[i] = InvestmentOpportunity{
			ID:                g.id("investment", i),
			Name:              funds[i%len(funds)],
			Kind:              kind,
			ExpectedReturnBps: g.s.Int(250, 1_800),
			Risk:              risk,
			Minimum:           g.money(100_000, 2_500_000),
		}
	}
	return out
}
