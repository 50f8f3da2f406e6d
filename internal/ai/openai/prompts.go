package openai

import (
	"fmt"
	"strings"
)

const similaritySystemPrompt = `You are an expert news analyst. Compare two news article excerpts and decide whether they discuss the same core event or very closely related topics.
Treat synonymous terms and closely related concepts as related even when the wording differs ("automotive industry" and "car manufacturers", "climate change" and "global warming").
Focus on substantial topical overlap, not minor keyword matches.
Respond with a JSON object: {"is_similar": boolean, "confidence": number between 0 and 1, "reasoning": short explanation}.`

const synonymsSystemPrompt = `You are an expert linguist and terminologist. For the given word, provide an extensive list of related terms: synonyms, near-synonyms and closely associated phrases used in news reporting.
Respond with a JSON object with a single key "synonyms" holding an array of strings. If no relevant terms exist, return an empty array.`

const summarySystemPrompt = `Summarize the news article in a concise and informative manner.
Respond with a JSON object: {"summary": string}.`

const biasSystemPrompt = `You are an expert in identifying bias in news articles. Analyze the article and determine its bias: Left, Center or Right.
Respond with a JSON object: {"bias": "Left" | "Center" | "Right", "explanation": string}.`

const neutralSystemPrompt = `You create neutral summaries of news articles. Remove loaded language and opinion, keep the facts, and present every side the article mentions.
Respond with a JSON object: {"neutral_summary": string}.`

func similarityUserPrompt(textA, textB string) string {
	return fmt.Sprintf("Article A:\n%s\n\nArticle B:\n%s", textA, textB)
}

func synonymsUserPrompt(word string) string {
	return "Word: " + word
}

func articleUserPrompt(content, instructions string) string {
	var b strings.Builder
	b.WriteString("Article:\n")
	b.WriteString(content)
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString("\n\nAdditional instructions:\n")
		b.WriteString(instructions)
	}
	return b.String()
}
