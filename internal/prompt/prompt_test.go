package prompt_test

import (
	"strings"
	"testing"

	"afkari/internal/prompt"
)

func TestBuildDeterministic(t *testing.T) {
	a := prompt.Build("rent or buy a flat", "en", prompt.VersionV2)
	b := prompt.Build("rent or buy a flat", "en", prompt.VersionV2)
	if a != b {
		t.Fatalf("identical inputs produced different prompts")
	}
}

func TestBuildEmbedsTrimmedProblem(t *testing.T) {
	p := prompt.Build("  move to Berlin?\n", "en", prompt.VersionV2)
	if !strings.Contains(p, `"""move to Berlin?"""`) {
		t.Fatalf("problem text not embedded verbatim inside quote block:\n%s", p)
	}
}

func TestBuildLocaleDefault(t *testing.T) {
	p := prompt.Build("x", "", prompt.VersionV2)
	if !strings.Contains(p, "Respond in en.") {
		t.Fatalf("empty locale should default to en:\n%s", p)
	}
	p = prompt.Build("x", "fr", prompt.VersionV2)
	if !strings.Contains(p, "Respond in fr.") {
		t.Fatalf("locale not threaded into prompt:\n%s", p)
	}
}

func TestBuildSchemaPerVersion(t *testing.T) {
	v1 := prompt.Build("x", "en", prompt.VersionV1)
	for _, want := range []string{"clarifyingQuestions", "actionPlan", "5-8 concrete action steps"} {
		if !strings.Contains(v1, want) {
			t.Fatalf("v1 prompt missing %q", want)
		}
	}
	if strings.Contains(v1, "recommendation") {
		t.Fatalf("v1 prompt must not mention recommendation")
	}

	v2 := prompt.Build("x", "en", prompt.VersionV2)
	for _, want := range []string{"recommendation", "bestOptionIndex", "scoreExplanation", "3-6 distinct options"} {
		if !strings.Contains(v2, want) {
			t.Fatalf("v2 prompt missing %q", want)
		}
	}
	if strings.Contains(v2, "actionPlan") {
		t.Fatalf("v2 prompt must not mention actionPlan")
	}
}
