package docqa

import "fmt"

// summarySystemPrompt frames the model for whole-document summaries.
const summarySystemPrompt = "You are an expert at summarizing documents. Provide clear, comprehensive summaries that capture the main ideas and key details."

// chatSystemPrompt frames general conversation.
const chatSystemPrompt = `You are a helpful AI assistant that answers questions based on provided documents.
You are accurate, concise, and always cite information from the source material when available.
If you don't know something, say so clearly.`

// answerPrompt builds the document-answer prompt. The instructions pin the
// model to the supplied context so it does not invent material outside the
// document.
func answerPrompt(question, context string) string {
	return fmt.Sprintf(`Context:
%s

Question: %s

Instructions:
- Answer the question based on the provided context above.
- If the answer cannot be found in the context, say "I cannot find this information in the provided document."
- Be accurate, concise, and cite specific details from the context when possible.
- If the question asks for a list (like "all degrees"), make sure to include all items mentioned in the context.
`, context, question)
}

// summaryPrompt builds the whole-document summarization prompt.
func summaryPrompt(context string) string {
	return fmt.Sprintf(`Please provide a comprehensive summary of the following document content.
Include the main topics, key points, and important details. Be thorough but concise.

Document Content:
%s

Summary:`, context)
}

// searchContextPrompt wraps a question with web search results so the model
// can ground its answer in current information.
func searchContextPrompt(question, searchContext string) string {
	return fmt.Sprintf(`Use the following web search results to answer the question. Prefer the search results over your own knowledge for anything time-sensitive.

%s

Question: %s`, searchContext, question)
}

// searchUnavailableNotice replaces search context when the search yielded
// nothing usable.
const searchUnavailableNotice = "Note: web search is currently unavailable, so answer from your own knowledge and say when your information may be out of date."
