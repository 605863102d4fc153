package viber

import "encoding/json"

// Button is one reply-keyboard button. ActionBody is echoed back as the
// message text when the user taps it.
type Button struct {
	Columns    int    `json:"Columns,omitempty"`
	Rows       int    `json:"Rows,omitempty"`
	BgColor    string `json:"BgColor,omitempty"`
	Text       string `json:"Text"`
	TextSize   string `json:"TextSize,omitempty"`
	TextVAlign string `json:"TextVAlign,omitempty"`
	TextHAlign string `json:"TextHAlign,omitempty"`
	ActionType string `json:"ActionType"`
	ActionBody string `json:"ActionBody"`
	Silent     string `json:"Silent,omitempty"`
}

// Keyboard is the reply-keyboard markup attached to outbound messages.
type Keyboard struct {
	Type          string   `json:"Type"`
	DefaultHeight bool     `json:"DefaultHeight,omitempty"`
	Buttons       []Button `json:"Buttons"`
}

// ReplyButton builds a tap-to-reply button with the given label and action
// token.
func ReplyButton(label, action string) Button {
	return Button{
		Text:       label,
		ActionType: "reply",
		ActionBody: action,
	}
}

// NewKeyboard builds a keyboard from reply buttons.
func NewKeyboard(buttons ...Button) Keyboard {
	return Keyboard{
		Type:    "keyboard",
		Buttons: buttons,
	}
}

// Append returns a copy of the keyboard with extra buttons added. The
// receiver is not modified.
func (k Keyboard) Append(buttons ...Button) Keyboard {
	extended := k
	extended.Buttons = make([]Button, 0, len(k.Buttons)+len(buttons))
	extended.Buttons = append(extended.Buttons, k.Buttons...)
	extended.Buttons = append(extended.Buttons, buttons...)
	return extended
}

// Encode serializes the keyboard for the last_keyboard store field.
func (k Keyboard) Encode() string {
	raw, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return string(raw)
}

// DecodeKeyboard restores a keyboard persisted with Encode. ok is false for
// empty or malformed input.
func DecodeKeyboard(raw string) (Keyboard, bool) {
	if raw == "" {
		return Keyboard{}, false
	}
	var k Keyboard
	if err := json.Unmarshal([]byte(raw), &k); err != nil {
		return Keyboard{}, false
	}
	return k, true
}
