// Package upstream implements the client for the generative-AI provider that
// produces nutrition estimates.
//
// A call builds a generateContent request: a fixed system instruction, the user
// query, and a response schema that constrains the provider's output to JSON.
// The request is sent with bounded retries and pure exponential backoff:
//
//   - 429 and 5xx responses, and transport errors, are retried
//   - any other non-2xx response is returned at once as KindClientRejected
//   - a 2xx response whose envelope or embedded JSON cannot be read is
//     KindMalformedResponse and is not retried
//   - running out of attempts yields KindRetriesExhausted
//
// Usage:
//
//	client, err := upstream.New(upstream.Config{
//		APIKey:  key,
//		BaseURL: upstream.DefaultBaseURL,
//		Model:   upstream.DefaultModel,
//	})
//	res, err := client.EstimateMacros(ctx, nutrition.TextQuery{Text: "2 eggs"})
//
// The transport and the backoff sleeper are injectable so that tests can
// script responses and observe delays without a network or a wall clock.
package upstream
