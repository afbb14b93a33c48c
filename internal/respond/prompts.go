package respond

import (
	"fmt"

	"github.com/example/triage/internal/llm"
)

const draftSystemPrompt = `You are a customer support agent. Answer the customer's question using only the resolved tickets provided as context. Be concise and specific. Never invent policies, prices, or steps that the tickets do not mention. Do not reference ticket numbers or internal systems in your reply.`

const directPromptTemplate = `Write a reply to this customer question. The context below contains closely matching resolved tickets; answer with their resolution.

CUSTOMER QUESTION:
%s

CONTEXT:
%s`

const hedgedPromptTemplate = `Write a reply to this customer question. The context below contains partially matching resolved tickets, so qualify the answer: lead with the most likely resolution, mention that it is based on similar past cases, and close by offering to connect the customer with an agent if it does not resolve their issue.

CUSTOMER QUESTION:
%s

CONTEXT:
%s`

const sentimentSystemPrompt = `You classify the tone of customer support questions. Return a JSON object with exactly these fields:

{"sentiment": "positive|neutral|negative", "urgency": "low|medium|high"}

Judge sentiment from wording and punctuation, urgency from deadlines, money at stake, or service outages.`

// buildDraftMessages constructs the LLM messages for drafting a reply.
func buildDraftMessages(band Band, question, context string) []llm.Message {
	template := hedgedPromptTemplate
	if band == BandDirect {
		template = directPromptTemplate
	}
	return llm.UserPrompt(draftSystemPrompt, fmt.Sprintf(template, question, context))
}
