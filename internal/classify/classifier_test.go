package classify

import (
	"reflect"
	"testing"
)

func TestClassify_MatchedVersions(t *testing.T) {
	cases := []struct {
		text    string
		version string
	}{
		{"New UE 5.4 plugin update available!", "5.4"},
		{"Updated to Unreal Engine 5.3", "5.3"},
		{"Plugin released for UE5.2", "5.2"},
		{"UE 5.0 marketplace update", "5.0"},
		{"Download UE5.4 now!", "5.4"},
		{"Unreal Engine 5.3 plugin released", "5.3"},
		{"UE5.1 available", "5.1"},
		{"Unreal Engine 4.27 update", "4.27"},
		{"v5.4 update for Unreal Engine", "5.4"},
		{"unreal engine 5.2 hotfix", "5.2"},
	}
	for _, tc := range cases {
		res := Classify(tc.text)
		if !res.Matched {
			t.Errorf("%q: expected match", tc.text)
			continue
		}
		if res.Version != tc.version {
			t.Errorf("%q: version = %q, want %q", tc.text, res.Version, tc.version)
		}
	}
}

func TestClassify_NoMatch(t *testing.T) {
	cases := []string{
		"",
		"Version 1.0 now available",
		"Version 5.1 now available for download", // version but no engine reference
		"New features in v5.4",                   // version but no engine reference
		"UE marketplace",                         // engine reference but no version
		"UE without version number",
		"5.4 alone without context",
		"Version 1.0 for Unity",
		"Random text about updates",
		"Just random text",
	}
	for _, text := range cases {
		res := Classify(text)
		if res.Matched {
			t.Errorf("%q: expected no match, got version %q", text, res.Version)
		}
		if res.Version != "" {
			t.Errorf("%q: non-matched result must carry no version, got %q", text, res.Version)
		}
	}
}

func TestClassify_PatchComponentDropped(t *testing.T) {
	res := Classify("UE 5.4.1 hotfix released")
	if !res.Matched {
		t.Fatal("expected match")
	}
	if res.Version != "5.4" {
		t.Errorf("version = %q, want 5.4 (patch dropped)", res.Version)
	}
}

func TestClassify_FirstVersionWins(t *testing.T) {
	res := Classify("Plugin updated from UE 4.26 to UE 5.3")
	if !res.Matched {
		t.Fatal("expected match")
	}
	if res.Version != "4.26" {
		t.Errorf("version = %q, want first token 4.26", res.Version)
	}
}

func TestClassify_MatchedText(t *testing.T) {
	res := Classify("New UE 5.4 plugin update available!")
	if res.MatchedText != "UE 5.4" {
		t.Errorf("matchedText = %q, want %q", res.MatchedText, "UE 5.4")
	}
}

func TestClassify_Keywords(t *testing.T) {
	res := Classify("New UE 5.4 plugin update available for download!")
	want := []string{"update", "download", "available", "plugin"}
	got := map[string]bool{}
	for _, kw := range res.Keywords {
		got[kw] = true
	}
	for _, kw := range want {
		if !got[kw] {
			t.Errorf("keyword %q missing from %v", kw, res.Keywords)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	const text = "Updated to Unreal Engine 5.3"
	first := Classify(text)
	second := Classify(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestClassifier_ExtraKeywords(t *testing.T) {
	c, err := New(Rules{Keywords: []string{"hotfix"}})
	if err != nil {
		t.Fatal(err)
	}
	res := c.Classify("UE 5.4.1 hotfix released")
	if !res.Matched {
		t.Fatal("expected match")
	}
	found := false
	for _, kw := range res.Keywords {
		if kw == "hotfix" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected extra keyword hotfix in %v", res.Keywords)
	}
}

func TestClassifier_Mute(t *testing.T) {
	c, err := New(Rules{Mute: []string{`\brepost\b`}})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Muted("REPOST: UE 5.4 plugin update") {
		t.Error("expected muted")
	}
	if c.Muted("UE 5.4 plugin update") {
		t.Error("expected not muted")
	}
	// Mute never changes the classification itself.
	if res := c.Classify("REPOST: UE 5.4 plugin update"); !res.Matched {
		t.Error("muted text must still classify")
	}
}

func TestClassifier_BadMutePattern(t *testing.T) {
	if _, err := New(Rules{Mute: []string{"("}}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestClassifier_ZeroValue(t *testing.T) {
	var c Classifier
	if !c.Classify("UE 5.4 update").Matched {
		t.Error("zero-value classifier should match like the default")
	}
}
