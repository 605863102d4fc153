package bot

import (
	"strings"

	"github.com/smartassist/viberbot/openai"
)

// Action is one recognized keyboard action token. Tokens arrive as the text
// of the message a button tap produces.
type Action string

const (
	ActionHelp            Action = "__help__"
	ActionCancel          Action = "__cancel__"
	ActionSetAPIKey       Action = "__set_api_key__"
	ActionStartChat       Action = "__start_chat__"
	ActionEndChat         Action = "__end_chat__"
	ActionGenerateImage   Action = "__generate_image__"
	ActionTranscriptMedia Action = "__transcript_media__"

	ActionRoleChatbot    Action = "__chatbot_role__"
	ActionRoleCook       Action = "__cook_role__"
	ActionRoleDoctor     Action = "__doctor_role__"
	ActionRoleSportsmen  Action = "__professional_sportsmen_role__"
	ActionRoleScientist  Action = "__scientist_role__"
	ActionRoleFunnyGuy   Action = "__funny_guy_role__"

	ActionCountOne   Action = "__1__"
	ActionCountTwo   Action = "__2__"
	ActionCountThree Action = "__3__"
	ActionCountFour  Action = "__4__"

	ActionSizeSmall  Action = "__small__"
	ActionSizeMedium Action = "__medium__"
	ActionSizeLarge  Action = "__large__"
)

// actions is the closed set of known tokens. Anything outside it is free
// text, never a button.
var actions = map[Action]struct{}{
	ActionHelp: {}, ActionCancel: {}, ActionSetAPIKey: {},
	ActionStartChat: {}, ActionEndChat: {}, ActionGenerateImage: {}, ActionTranscriptMedia: {},
	ActionRoleChatbot: {}, ActionRoleCook: {}, ActionRoleDoctor: {},
	ActionRoleSportsmen: {}, ActionRoleScientist: {}, ActionRoleFunnyGuy: {},
	ActionCountOne: {}, ActionCountTwo: {}, ActionCountThree: {}, ActionCountFour: {},
	ActionSizeSmall: {}, ActionSizeMedium: {}, ActionSizeLarge: {},
}

// ParseAction reports whether the text is a known action token.
func ParseAction(text string) (Action, bool) {
	a := Action(text)
	_, ok := actions[a]
	return a, ok
}

// IsGlobal reports whether the action is honored regardless of state.
func (a Action) IsGlobal() bool {
	return a == ActionHelp || a == ActionCancel || a == ActionSetAPIKey
}

// Role returns the assistant role for a role action, with the token
// decoration stripped and underscores turned into spaces.
func (a Action) Role() (string, bool) {
	s := string(a)
	if !strings.HasPrefix(s, "__") || !strings.HasSuffix(s, "_role__") {
		return "", false
	}
	if _, ok := actions[a]; !ok {
		return "", false
	}
	s = strings.TrimPrefix(s, "__")
	s = strings.TrimSuffix(s, "_role__")
	return strings.ReplaceAll(s, "_", " "), true
}

// Count returns the image count for a count action.
func (a Action) Count() (int, bool) {
	switch a {
	case ActionCountOne:
		return 1, true
	case ActionCountTwo:
		return 2, true
	case ActionCountThree:
		return 3, true
	case ActionCountFour:
		return 4, true
	}
	return 0, false
}

// Size returns the image size for a size action.
func (a Action) Size() (openai.ImageSize, bool) {
	switch a {
	case ActionSizeSmall:
		return openai.ImageSizeSmall, true
	case ActionSizeMedium:
		return openai.ImageSizeMedium, true
	case ActionSizeLarge:
		return openai.ImageSizeLarge, true
	}
	return "", false
}

// parseFreeCount accepts a bare digit as a count selection fallback.
func parseFreeCount(text string) (int, bool) {
	switch strings.TrimSpace(text) {
	case "1":
		return 1, true
	case "2":
		return 2, true
	case "3":
		return 3, true
	case "4":
		return 4, true
	}
	return 0, false
}

// parseFreeSize accepts a size word as a selection fallback.
func parseFreeSize(text string) (openai.ImageSize, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "small":
		return openai.ImageSizeSmall, true
	case "medium":
		return openai.ImageSizeMedium, true
	case "large":
		return openai.ImageSizeLarge, true
	}
	return "", false
}
