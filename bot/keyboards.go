package bot

import "github.com/smartassist/viberbot/viber"

var (
	helpButton      = viber.ReplyButton("Help ℹ️", string(ActionHelp))
	setAPIKeyButton = viber.ReplyButton("Set API Key 🔑", string(ActionSetAPIKey))
	cancelButton    = viber.ReplyButton("Cancel ❌", string(ActionCancel))
)

func mainKeyboard() viber.Keyboard {
	return viber.NewKeyboard(
		viber.ReplyButton("Start Chat With Assistant 💬", string(ActionStartChat)),
		viber.ReplyButton("Generate Image 🖼️", string(ActionGenerateImage)),
		viber.ReplyButton("Transcript Media 🎙️", string(ActionTranscriptMedia)),
		setAPIKeyButton,
	)
}

func setAPIKeyKeyboard() viber.Keyboard {
	return viber.NewKeyboard(setAPIKeyButton)
}

func cancelKeyboard() viber.Keyboard {
	return viber.NewKeyboard(cancelButton)
}

func endChatKeyboard() viber.Keyboard {
	return viber.NewKeyboard(viber.ReplyButton("End Chat ❌", string(ActionEndChat)))
}

func rolesKeyboard() viber.Keyboard {
	return viber.NewKeyboard(
		viber.ReplyButton("Chatbot 🤖", string(ActionRoleChatbot)),
		viber.ReplyButton("Cook 👨‍🍳", string(ActionRoleCook)),
		viber.ReplyButton("Doctor 👨‍⚕️", string(ActionRoleDoctor)),
		viber.ReplyButton("Professional sportsmen 🏆", string(ActionRoleSportsmen)),
		viber.ReplyButton("Scientist 👨‍🔬", string(ActionRoleScientist)),
		viber.ReplyButton("Funny guy 😂", string(ActionRoleFunnyGuy)),
	)
}

func imageCountKeyboard() viber.Keyboard {
	return viber.NewKeyboard(
		viber.ReplyButton("1️⃣", string(ActionCountOne)),
		viber.ReplyButton("2️⃣", string(ActionCountTwo)),
		viber.ReplyButton("3️⃣", string(ActionCountThree)),
		viber.ReplyButton("4️⃣", string(ActionCountFour)),
	)
}

func imageSizeKeyboard() viber.Keyboard {
	return viber.NewKeyboard(
		viber.ReplyButton("Small", string(ActionSizeSmall)),
		viber.ReplyButton("Medium", string(ActionSizeMedium)),
		viber.ReplyButton("Large", string(ActionSizeLarge)),
	)
}
