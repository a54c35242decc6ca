package query

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in         string
		wantTitle  string
		wantArtist string
	}{
		{"jump by van halen", "jump", "van halen"},
		{"stand by me by Ben E. King", "stand by me", "Ben E. King"},
		{"jump - van halen", "jump", "van halen"},
		{"jump – van halen", "jump", "van halen"},
		{"jump, van halen", "jump", "van halen"},
		{"jump", "jump", ""},
		{"the dude", "the dude", ""},
		{"jump Van Halen", "jump", "Van Halen"},
		{"the dude Quincy Jones", "the dude", "Quincy Jones"},
		{"jump van halen", "jump", "van halen"}, // all-lowercase freetext
		{"the dude quincy jones", "the dude", "quincy jones"},
		// Function words keep ballad-style titles whole.
		{"my heart will go on", "my heart will go on", ""},
		{"total eclipse of the heart", "total eclipse of the heart", ""},
		{"My Heart Will Go On", "My Heart Will Go On", ""},
		{"empire state of mind Jay-Z", "empire state of mind Jay-Z", ""}, // single trailing word
		{"walk this way Run D.M.C.", "walk this way", "Run D.M.C."},
		{"", "", ""},
		{"   ", "", ""},
	}
	for _, tt := range tests {
		got := Parse(tt.in)
		if got.Title != tt.wantTitle || got.Artist != tt.wantArtist {
			t.Errorf("Parse(%q) = {%q, %q}, want {%q, %q}",
				tt.in, got.Title, got.Artist, tt.wantTitle, tt.wantArtist)
		}
	}
}

func TestParseIdempotent(t *testing.T) {
	inputs := []string{"jump by van halen", "the dude Quincy Jones", "jump"}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(in)
		if first != second {
			t.Errorf("Parse(%q) not deterministic: %+v vs %+v", in, first, second)
		}
	}
}

func TestSingleWord(t *testing.T) {
	if !Parse("jump").SingleWord() {
		t.Error("jump should be single-word")
	}
	if Parse("the dude").SingleWord() {
		t.Error("the dude should not be single-word")
	}
}

func TestHasArtist(t *testing.T) {
	if Parse("jump").HasArtist() {
		t.Error("bare title should have no artist")
	}
	if !Parse("jump by van halen").HasArtist() {
		t.Error("expected artist")
	}
}
