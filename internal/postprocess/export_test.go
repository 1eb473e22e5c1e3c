package postprocess

// NewTestProcessor builds an OpenAIProcessor over a custom chat completer.
var NewTestProcessor = newProcessor

// Exported for white-box testing of error classification.
var (
	ClassifyChatError    = classifyChatError
	IsRetryableChatError = isRetryableChatError
	TranslatePrompt      = translatePrompt
)
