package bot

// User-visible reply texts.
const (
	msgMenuHelpHint = "For more details see Help section."
	msgWelcome      = "Welcome to the Smart Assistant Viber bot! Ask me something or go to menu in order to use extended list of features. " + msgMenuHelpHint

	msgSendAPIKey       = "Please send me your OpenAI API key. Use Help menu button in order to get info about how to get it."
	msgAPIKeyRequired   = "Please provide me with your OpenAI API key via bot menu in order to use bot functionality."
	msgAPIKeySet        = "API key set successfully! Now you can use bot functionality."
	msgCredentialBroken = "Your stored API key can no longer be used. Please provide it again via bot menu."

	msgSelectRole         = "Please select role of your assistant from the given list or send me your option."
	msgAssistantAnswering = "Assistant is answering on your message. Please wait..."
	msgChatStarted        = "Chat with your assistant has been started. Feel free to ask something 😊"
	msgChatEnded          = "Chat with your assistant has been ended. It was a pleasure to communicate with you 😊"
	msgChatLost           = "Your previous chat was interrupted. Please start a new one via bot menu."

	msgImageDescription = "Please provide description of image which you want to generate."
	msgImageCount       = "How much images do you want to generate?"
	msgImageSize        = "Please select images size."
	msgImagesGenerating = "Images are generating at the moment. Please wait..."
	msgHereAreImages    = "Here are your images 😊"

	msgSendMediaFile      = "Please provide media file which you want to transcript. It can be voice message, audio or video file.\nSupported formats: ['m4a', 'mp3', 'webm', 'mp4', 'mpga', 'wav', 'mpeg']"
	msgTranscribing       = "Transcription in progress. Please wait..."
	msgFileDownloadFailed = "File downloading failed 😢. Please try again later."
	msgBadFileType        = "Provided file is not a media file. Please provide me with audio or video file with one of the next formats: ['m4a', 'mp3', 'webm', 'mp4', 'mpga', 'wav', 'mpeg']"

	msgNotSupported  = "This feature is not supported yet."
	msgGenericError  = "Something went wrong."
	msgTryAgainLater = "An error occurred. Please try again."
)

const msgHelp = `1. In order to use bot functionality you need to provide bot with your OpenAI API Key. If you already have an API key then provide bot with it using the Set API Key menu button.
2. After setting OpenAI API Key you will unlock access to the next features:
    - Communication with AI assistant
    - Image generation by description
    - Audio transcription
3. You can communicate with your assistant in 2 ways. First way is very simple - just write some message to the bot and he will answer. But if you want bot to remember message history and have longer full-fledged conversation then use the Start Chat With Assistant button and follow instructions.
4. Use the Generate Image menu button in order to generate image or some images by description. Feel free to describe as much details of desired image as you want.
5. If you want to transcript some media file or voice message then use the Transcript Media menu button and provide bot with voice message, audio or video file.`
