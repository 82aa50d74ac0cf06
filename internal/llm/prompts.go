package llm

import "fmt"

// ContextualizePrompt instructs the model to rewrite a follow-up
// question into a standalone one before retrieval.
const ContextualizePrompt = "Given a chat history and the latest user question, " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do not answer the question, " +
	"just reformulate it if needed otherwise return as it is."

// QAPrompt is the system prompt for answering over retrieved context.
func QAPrompt(context string) string {
	return fmt.Sprintf("You are an assistant for question answering tasks. "+
		"Use the following pieces of retrieved context to answer "+
		"the question. If you don't know the answer, say that you "+
		"don't know. Keep the answer concise.\n\n%s", context)
}

// SummaryPrompt is the system prompt for document summarization.
func SummaryPrompt(content string) string {
	return fmt.Sprintf("You are a helpful assistant that summarizes documents. "+
		"Please provide a concise summary of the following content:\n\n%s", content)
}

// TitlePrompt asks for a short session title from the first user message.
func TitlePrompt(firstMessage string) string {
	return fmt.Sprintf("Generate a very short title (3-5 words) for a conversation "+
		"that starts with: '%s'. Return only the title text.", firstMessage)
}
