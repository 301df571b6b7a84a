package services

import "github.com/tmc/langchaingo/prompts"

// ContextualizeSystemPrompt asks the model to turn a follow-up into a question
// that can be understood without the chat history.
const ContextualizeSystemPrompt = `Given a chat history and the latest user question which might reference context in the chat history, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is.`

const qaSystemTemplate = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know.

{{.context}}`

// NewQAPrompt returns the answer step's system prompt. It takes one input
// variable, "context".
func NewQAPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(qaSystemTemplate, []string{"context"})
}
