package openai

import openaisdk "github.com/openai/openai-go"

// BuildChatParams exposes buildChatParams for white-box testing.
var BuildChatParams = func(cfg Config, question, contextText string) openaisdk.ChatCompletionNewParams {
	return buildChatParams(cfg, question, contextText)
}
