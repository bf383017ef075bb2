package otel

import "go.opentelemetry.io/otel/attribute"

func llmOracleAttr(oracle string) attribute.KeyValue {
	return attribute.String("llm.oracle", oracle)
}

func llmModelAttr(model string) attribute.KeyValue {
	return attribute.String("llm.model", model)
}

func llmInputTokensAttr(tokens int) attribute.KeyValue {
	return attribute.Int("llm.input_tokens", tokens)
}

func llmOutputTokensAttr(tokens int) attribute.KeyValue {
	return attribute.Int("llm.output_tokens", tokens)
}

func iterationAttr(n int) attribute.KeyValue {
	return attribute.Int("search.iteration", n)
}

func openSizeAttr(n int) attribute.KeyValue {
	return attribute.Int("search.open_size", n)
}

func scoreAttr(score float64) attribute.KeyValue {
	return attribute.Float64("search.score", score)
}

func branchIndexAttr(index int) attribute.KeyValue {
	return attribute.Int("branch.index", index)
}

func branchGAttr(g float64) attribute.KeyValue {
	return attribute.Float64("branch.g", g)
}

func branchHAttr(h float64) attribute.KeyValue {
	return attribute.Float64("branch.h", h)
}

func rolloutStepsAttr(n int) attribute.KeyValue {
	return attribute.Int("branch.rollout_steps", n)
}

func eventDataAttr(data string) attribute.KeyValue {
	return attribute.String("event.data", data)
}
