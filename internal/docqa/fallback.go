package docqa

import "strings"

// cannedResponse pairs a substring pattern with a fixed reply. Patterns are
// checked in order against the lowercased question, so more specific entries
// must come first within their table.
type cannedResponse struct {
	pattern  string
	response string
}

// greetingResponses answer simple greetings while the model backend is down.
var greetingResponses = []cannedResponse{
	{"good morning", "Good morning! How can I help you?"},
	{"good afternoon", "Good afternoon! What can I do for you?"},
	{"good evening", "Good evening! How may I assist you?"},
	{"hello", "Hi there! What would you like to know?"},
	{"hey", "Hey! How can I assist you?"},
	{"hi", "Hello! How can I help you today?"},
}

// commonResponses answer a few frequent meta-questions offline.
var commonResponses = []cannedResponse{
	{"how are you", "I'm doing well, thank you for asking! How can I help you today?"},
	{"what can you do", "I can help you answer questions about uploaded documents or general questions. However, I need Ollama (a local AI service) to be running for full functionality."},
	{"who are you", "I'm an AI assistant designed to help answer questions about documents and provide general information. I use local AI models through Ollama."},
}

// offlineErrorResponse tells the user how to restore the model service. It is
// the last line of defense when no canned rule matches.
const offlineErrorResponse = "I apologize, but I'm currently unable to process your question because " +
	"Ollama (the local AI service) is not running or not accessible.\n\n" +
	"To fix this:\n" +
	"1. Install Ollama from https://ollama.ai/download\n" +
	"2. Pull a model: 'ollama pull llama3'\n" +
	"3. Make sure Ollama is running\n" +
	"4. Ask your question again\n\n" +
	"Once Ollama is running, I'll be able to answer your questions!"

// fallbackAnswer produces a deterministic answer without any model or search
// dependency. It never fails.
func fallbackAnswer(question string) *Answer {
	lower := strings.ToLower(strings.TrimSpace(question))

	for _, table := range [][]cannedResponse{greetingResponses, commonResponses} {
		for _, canned := range table {
			if strings.Contains(lower, canned.pattern) {
				return &Answer{Text: canned.response, Sources: []Source{}, Intent: IntentFallback}
			}
		}
	}
	return &Answer{Text: offlineErrorResponse, Sources: []Source{}, Intent: IntentFallback}
}
