package bot

import (
	"testing"

	"github.com/smartassist/viberbot/openai"
)

func TestParseActionClosedSet(t *testing.T) {
	if _, ok := ParseAction("__help__"); !ok {
		t.Error("help token not recognized")
	}
	for _, text := range []string{"help", "__bogus__", "", "__role__", "__5__"} {
		if _, ok := ParseAction(text); ok {
			t.Errorf("ParseAction(%q) accepted", text)
		}
	}
}

func TestActionRole(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionRoleChatbot, "chatbot"},
		{ActionRoleCook, "cook"},
		{ActionRoleSportsmen, "professional sportsmen"},
		{ActionRoleFunnyGuy, "funny guy"},
	}
	for _, tt := range tests {
		role, ok := tt.action.Role()
		if !ok || role != tt.want {
			t.Errorf("%s.Role() = %q/%v, want %q", tt.action, role, ok, tt.want)
		}
	}
	if _, ok := ActionHelp.Role(); ok {
		t.Error("help parsed as role")
	}
	if _, ok := Action("__hacker_role__").Role(); ok {
		t.Error("unknown role token accepted")
	}
}

func TestActionCountAndSize(t *testing.T) {
	if n, ok := ActionCountThree.Count(); !ok || n != 3 {
		t.Errorf("Count() = %d/%v", n, ok)
	}
	if _, ok := ActionSizeSmall.Count(); ok {
		t.Error("size token parsed as count")
	}
	if s, ok := ActionSizeLarge.Size(); !ok || s != openai.ImageSizeLarge {
		t.Errorf("Size() = %q/%v", s, ok)
	}
}

func TestFreeTextFallbacks(t *testing.T) {
	if n, ok := parseFreeCount(" 2 "); !ok || n != 2 {
		t.Errorf("parseFreeCount = %d/%v", n, ok)
	}
	if _, ok := parseFreeCount("5"); ok {
		t.Error("count 5 accepted")
	}
	if s, ok := parseFreeSize("Medium"); !ok || s != openai.ImageSizeMedium {
		t.Errorf("parseFreeSize = %q/%v", s, ok)
	}
	if _, ok := parseFreeSize("tiny"); ok {
		t.Error("unknown size accepted")
	}
}

func TestIsMediaFile(t *testing.T) {
	for _, name := range []string{"voice.mp3", "clip.MP4", "note.m4a", "talk.webm", "a.wav", "b.mpga", "c.mpeg"} {
		if !isMediaFile(name) {
			t.Errorf("isMediaFile(%q) = false", name)
		}
	}
	for _, name := range []string{"report.pdf", "image.png", "noext", "voice.mp3.exe"} {
		if isMediaFile(name) {
			t.Errorf("isMediaFile(%q) = true", name)
		}
	}
}
