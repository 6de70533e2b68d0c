package canonicalize

import (
	"encoding/json"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

func FuzzJCSIdempotent(f *testing.F) {
	f.Add([]byte(`{"type":"intent.approve","data":{"packetId":"p-1","optionId":""}}`))
	f.Add([]byte(`{"eventType":"attack_prompt_injection","createdAt":"2026-05-04T10:00:00Z","data":{"severity":"high"}}`))
	f.Add([]byte(`{"cost":"1234.50","withinBudget":false,"blockedSteps":["s-1","s-3"]}`))
	f.Add([]byte(`{"latency":[12,0.5,1e21,-0.0]}`))
	f.Add([]byte(`{"summary":"Café <Ember and Oak> & co"}`))
	f.Add([]byte(`[]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			t.Skip("not JSON")
		}
		first, err := JCS(v)
		if err != nil {
			return
		}

		var again interface{}
		if err := json.Unmarshal(first, &again); err != nil {
			t.Fatalf("canonical output does not parse: %s", first)
		}
		second, err := JCS(again)
		if err != nil {
			t.Fatalf("canonical output cannot be re-canonicalized: %v", err)
		}
		if string(first) != string(second) {
			t.Errorf("not idempotent:\n  first:  %s\n  second: %s", first, second)
		}

		s, err := Canonicalize(v)
		if err != nil || s != string(first) {
			t.Errorf("Canonicalize disagrees with JCS: %q vs %q (%v)", s, first, err)
		}
	})
}

func FuzzJCSNormalisesStrings(f *testing.F) {
	f.Add("persona", "Café")
	f.Add("Zoë", "naïve résumé")
	f.Add("hotel", "Ember and Oak")

	f.Fuzz(func(t *testing.T, key, value string) {
		if !utf8.ValidString(key) || !utf8.ValidString(value) {
			t.Skip("invalid UTF-8")
		}
		composed, err := JCS(map[string]string{norm.NFC.String(key): norm.NFC.String(value)})
		if err != nil {
			t.Fatal(err)
		}
		decomposed, err := JCS(map[string]string{norm.NFD.String(key): norm.NFD.String(value)})
		if err != nil {
			t.Fatal(err)
		}
		if string(composed) != string(decomposed) {
			t.Errorf("NFC and NFD forms differ:\n  %s\n  %s", composed, decomposed)
		}
	})
}
