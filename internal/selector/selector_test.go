package selector

import (
	"reflect"
	"testing"
)

// seq returns a RandSource that yields the given values in order, then 0.
func seq(vals ...float64) RandSource {
	i := 0
	return func() float64 {
		if i >= len(vals) {
			return 0
		}
		v := vals[i]
		i++
		return v
	}
}

func pool2() []Candidate {
	return []Candidate{
		{ID: "rasoa", Name: "Rasoa", Lead: true, Available: true},
		{ID: "rakoto", Name: "Rakoto", Available: true},
	}
}

func TestParseMentions(t *testing.T) {
	cases := []struct {
		content string
		want    []string
	}{
		{"hey @Rasoa can you help", []string{"rasoa"}},
		{"@Rasoa @Rakoto", []string{"rasoa", "rakoto"}},
		{"@Rakoto then @Rasoa then @Rakoto again", []string{"rakoto", "rasoa"}},
		{"email me at a@b.com", nil},
		{"no mentions here", nil},
	}
	for _, tc := range cases {
		got := ParseMentions(tc.content)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseMentions(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestRemoveMentions(t *testing.T) {
	got := RemoveMentions("hey @Rasoa   can you help @Rakoto ?")
	want := "hey can you help ?"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSelect_SingleMentionShortCircuits(t *testing.T) {
	s := New(TableDual, seq())
	res := s.Select("hey @Rakoto can you take this", pool2())
	if !res.Mentioned {
		t.Error("expected Mentioned flag")
	}
	if !reflect.DeepEqual(res.Responders, []string{"rakoto"}) {
		t.Errorf("expected only rakoto, got %v", res.Responders)
	}
}

func TestSelect_MentionedButUnavailableStillSelected(t *testing.T) {
	candidates := pool2()
	candidates[1].Available = false // rakoto out of quota
	s := New(TableDual, seq())
	res := s.Select("@Rakoto ping", candidates)
	if !reflect.DeepEqual(res.Responders, []string{"rakoto"}) {
		t.Errorf("unavailable mentioned teammate must still be selected (sleep path), got %v", res.Responders)
	}
}

func TestSelect_LeadMentionedUnavailableSubstitutes(t *testing.T) {
	candidates := pool2()
	candidates[0].Available = false // lead off today
	s := New(TableDual, seq())
	res := s.Select("@Rasoa are you there?", candidates)
	if !res.LeadUnavailable {
		t.Error("expected LeadUnavailable flag")
	}
	if !reflect.DeepEqual(res.Responders, []string{"rakoto"}) {
		t.Errorf("expected remaining personas to respond, got %v", res.Responders)
	}
}

func TestSelect_MentionMatchesIDWhenNameDiverges(t *testing.T) {
	// catalog overrides may give a persona a display name that differs
	// from its id; either token must resolve to the same candidate,
	// and mentioning both must not select it twice
	candidates := []Candidate{
		{ID: "lead01", Name: "Vola", Lead: true, Available: true},
		{ID: "dev02", Name: "Hery", Available: true},
	}
	s := New(TableDual, seq())

	res := s.Select("@lead01 can you review?", candidates)
	if !reflect.DeepEqual(res.Responders, []string{"lead01"}) {
		t.Errorf("mention by id must resolve, got %v", res.Responders)
	}

	res = s.Select("@Vola or @lead01, either of you", candidates)
	if !reflect.DeepEqual(res.Responders, []string{"lead01"}) {
		t.Errorf("name and id tokens for one persona must select it once, got %v", res.Responders)
	}
}

func TestSelect_MultipleMentionsFirstAppearanceOrder(t *testing.T) {
	s := New(TableDual, seq())
	res := s.Select("@Rakoto and @Rasoa please weigh in", pool2())
	if !reflect.DeepEqual(res.Responders, []string{"rakoto", "rasoa"}) {
		t.Errorf("expected mention order preserved, got %v", res.Responders)
	}
}

func TestDualTable_SpecifiedBands(t *testing.T) {
	// [0.05] with 2 available personas -> both respond
	res := New(TableDual, seq(0.05, 0.9)).Select("hello team", pool2())
	if len(res.Responders) != 2 {
		t.Fatalf("draw 0.05 must select both, got %v", res.Responders)
	}

	// [0.30] -> first persona alone
	res = New(TableDual, seq(0.30)).Select("hello team", pool2())
	if !reflect.DeepEqual(res.Responders, []string{"rasoa"}) {
		t.Fatalf("draw 0.30 must select the first persona, got %v", res.Responders)
	}

	// [0.80] -> second persona alone
	res = New(TableDual, seq(0.80)).Select("hello team", pool2())
	if !reflect.DeepEqual(res.Responders, []string{"rakoto"}) {
		t.Fatalf("draw 0.80 must select the second persona, got %v", res.Responders)
	}
}

func TestDualTable_BothOrderRandomized(t *testing.T) {
	// second draw >= 0.5 keeps pool order; < 0.5 swaps
	res := New(TableDual, seq(0.05, 0.7)).Select("hi", pool2())
	if !reflect.DeepEqual(res.Responders, []string{"rasoa", "rakoto"}) {
		t.Errorf("expected catalog order, got %v", res.Responders)
	}
	res = New(TableDual, seq(0.05, 0.2)).Select("hi", pool2())
	if !reflect.DeepEqual(res.Responders, []string{"rakoto", "rasoa"}) {
		t.Errorf("expected swapped order, got %v", res.Responders)
	}
}

func TestDualTable_SinglePersona(t *testing.T) {
	one := pool2()[:1]
	if res := New(TableDual, seq(0.5)).Select("hi", one); len(res.Responders) != 1 {
		t.Errorf("draw 0.5 with one persona should respond, got %v", res.Responders)
	}
	// 15% of messages get no AI response at all
	if res := New(TableDual, seq(0.9)).Select("hi", one); len(res.Responders) != 0 {
		t.Errorf("draw 0.9 with one persona should stay silent, got %v", res.Responders)
	}
}

func TestDualTable_EmptyPool(t *testing.T) {
	candidates := pool2()
	candidates[0].Available = false
	candidates[1].Available = false
	res := New(TableDual, seq(0.0)).Select("hi", candidates)
	if len(res.Responders) != 0 {
		t.Errorf("no available personas must mean no responders, got %v", res.Responders)
	}
}

func TestDualTable_PoolOfThreeRandomPick(t *testing.T) {
	pool := append(pool2(), Candidate{ID: "naina", Name: "Naina", Available: true})
	// r=0.80 lands in the "random persona alone" band; 0.99 maps to index 2
	res := New(TableDual, seq(0.80, 0.99)).Select("hi", pool)
	if !reflect.DeepEqual(res.Responders, []string{"naina"}) {
		t.Errorf("expected naina, got %v", res.Responders)
	}
}

func multiPool() []Candidate {
	return []Candidate{
		{ID: "rasoa", Name: "Rasoa", Lead: true, Available: true},
		{ID: "rakoto", Name: "Rakoto", Available: true},
		{ID: "naina", Name: "Naina", Available: true},
	}
}

func TestMultiTable_Bands(t *testing.T) {
	cases := []struct {
		draw float64
		want []string
	}{
		{0.10, []string{"rasoa"}},
		{0.25, []string{"rakoto"}},
		{0.40, []string{"naina"}},
		{0.60, []string{"rasoa", "rakoto"}},
		{0.75, []string{"rakoto", "naina"}},
		{0.90, []string{"rasoa", "rakoto", "naina"}},
	}
	for _, tc := range cases {
		res := New(TableMulti, seq(tc.draw)).Select("hello", multiPool())
		if !reflect.DeepEqual(res.Responders, tc.want) {
			t.Errorf("draw %.2f: got %v, want %v", tc.draw, res.Responders, tc.want)
		}
	}
}

func TestMultiTable_DegradedPool(t *testing.T) {
	pool := multiPool()[:2] // lead + one teammate
	// band 0.40 would pick teammate B, which does not exist; falls back
	res := New(TableMulti, seq(0.40)).Select("hello", pool)
	if len(res.Responders) != 1 {
		t.Fatalf("degraded pool must still pick someone, got %v", res.Responders)
	}
}
