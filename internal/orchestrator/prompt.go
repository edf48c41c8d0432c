package orchestrator

import "strings"

// answerPromptTemplate is reproduced verbatim (modulo Go raw-string
// escaping) from original_source/app/utils/const.py's prompt_template.
const answerPromptTemplate = `You are an AI assistant specialized in answering questions about documents.You will receive a
question along with relevant context from an extracted part of a document. Your response
should be clear, concise, and structured as follows:

You can skip any of the headings mentioned in the below structure which are "Answer Summary,
Supporting Details, Key Points and Additional Notes", if you don't find it necessary to include the
heading in the response and make sure that the answer does not contain repetitive text.

**Answer Summary:** Provide a brief answer to the question. If the answer is not found in the provided context,
say: "Hmm, I'm not sure." Do not invent or assume information.

**Supporting Details:** Provide any supporting details from the context that helped you derive the answer in detail.
Don't skip over or summarize any part here. If the context is insufficient to fully answer the question,
mention that explicitly in bold letters.

**Key Points:** Highlight any important facts or key takeaways relevant to the question that were found in the
context with proper formatting eg using bullet points or any other way.

**Additional Notes:** If there are related topics or clarifications needed, include them here. If the answer can
be derived from multiple pieces of context, mention how they were integrated.

If you don't know the answer, just say "Hmm, I'm not sure." Don't try to make up an answer.
Question: {question}
=========
{context}
=========
Answer in Markdown: `

// hydePromptTemplate is HyDEService's own conversational template, used to
// generate the hypothetical document with an empty context (the call that
// produces a passage "as if" the answer were already known), grounded in
// original_source/app/services/hyde_service.py.
const hydePromptTemplate = `You are an AI assistant for answering questions about the various documents from the user.
You are given the following extracted parts of a long document and a question.If you are not provided with any extracted
parts of the documments then try to generate an answer based on your knowledge and facts in your knowledge. Remember to provide a conversational answer.
If you don't know the answer, just say "Hmm, I'm not sure." Don't try to make up an answer.
Question: {question}
=========
{context}
=========
Answer in Markdown: `

func fillTemplate(template, question, context string) string {
	r := strings.NewReplacer("{question}", question, "{context}", context)
	return r.Replace(template)
}

func buildAnswerPrompt(question, context string) string {
	return fillTemplate(answerPromptTemplate, question, context)
}

func buildHyDEPrompt(question string) string {
	return fillTemplate(hydePromptTemplate, question, "")
}
