package remote

import "testing"

func TestReassemblerJoinsMessagesAsParagraphs(t *testing.T) {
	re := NewReassembler()
	re.AddMessage("Working on it.")
	re.AddMessage("Found the bug.")

	want := "Working on it.\n\nFound the bug."
	if got := re.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReassemblerIgnoresEmptyMessages(t *testing.T) {
	re := NewReassembler()
	re.AddMessage("")
	re.AddMessage("only this")

	if got := re.String(); got != "only this" {
		t.Errorf("expected %q, got %q", "only this", got)
	}
}

func TestReassemblerArtifactHeader(t *testing.T) {
	re := NewReassembler()
	re.AddArtifact("a1", "patch.diff", false, "line one")

	want := "Artifact (patch.diff):\nline one"
	if got := re.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReassemblerArtifactAppendGrowsInPlace(t *testing.T) {
	re := NewReassembler()
	re.AddMessage("before")
	re.AddArtifact("a1", "log.txt", false, "chunk1")
	re.AddMessage("after")
	re.AddArtifact("a1", "log.txt", true, " chunk2")

	want := "before\n\nArtifact (log.txt):\nchunk1 chunk2\n\nafter"
	if got := re.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReassemblerArtifactResetRewritesParagraph(t *testing.T) {
	re := NewReassembler()
	re.AddArtifact("a1", "out.txt", false, "first version")
	re.AddMessage("note")
	re.AddArtifact("a1", "out.txt", false, "second version")

	want := "Artifact (out.txt):\nsecond version\n\nnote"
	if got := re.String(); got != want {
		t.Errorf("expected reset to rewrite in place, got %q", got)
	}
}

func TestReassemblerAppendWithoutPriorArtifactStartsOne(t *testing.T) {
	re := NewReassembler()
	re.AddArtifact("a1", "out.txt", true, "orphan chunk")

	want := "Artifact (out.txt):\norphan chunk"
	if got := re.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReassemblerDistinctArtifactsStayDistinct(t *testing.T) {
	re := NewReassembler()
	re.AddArtifact("a1", "one.txt", false, "A")
	re.AddArtifact("a2", "two.txt", false, "B")
	re.AddArtifact("a1", "one.txt", true, "A2")

	want := "Artifact (one.txt):\nAA2\n\nArtifact (two.txt):\nB"
	if got := re.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReassemblerStringIsIdempotent(t *testing.T) {
	re := NewReassembler()
	re.AddMessage("hello")
	re.AddArtifact("a1", "f.txt", false, "x")

	first := re.String()
	for i := 0; i < 3; i++ {
		if got := re.String(); got != first {
			t.Fatalf("String changed on repeat call: %q vs %q", got, first)
		}
	}
}
