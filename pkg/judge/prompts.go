package judge

import "fmt"

const (
	faithfulnessSystemPrompt = "You are an expert AI quality evaluator. Your task is to rate the 'Model Output' " +
		"based on the 'Reference Context'. Rate the faithfulness (lack of hallucination) on a scale of 1 to 5. " +
		"5 is perfectly faithful, 1 is completely hallucinated. Return ONLY the score."

	relevanceSystemPrompt = "You are an expert AI quality evaluator. Your task is to rate the 'Model Output' " +
		"based on the original 'Input Query'. Rate the relevance on a scale of 1 to 5. " +
		"5 is perfectly relevant, 1 is completely irrelevant. Return ONLY the score."
)

func faithfulnessUserPrompt(modelOutput, referenceContext string) string {
	return fmt.Sprintf("Model Output: %s\n\nReference Context: %s", modelOutput, referenceContext)
}

func relevanceUserPrompt(query, modelOutput string) string {
	return fmt.Sprintf("Input Query: %s\n\nModel Output: %s", query, modelOutput)
}
