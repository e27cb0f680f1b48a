// Package completion connects the reliability and caching core to an AI
// provider.
//
// AnthropicClient implements Completer over the Anthropic Messages API and
// classifies every failure into the apierr taxonomy at the call boundary.
// Service composes a Completer with a resilience.Reliability facade and an
// optional cache.ResponseCache.
//
//	client, _ := completion.NewAnthropicClient(completion.AnthropicConfig{APIKey: key})
//	svc := completion.NewService(client, reliability,
//	    completion.WithCache(cache.New[completion.Response](store)))
//
//	resp, err := svc.Generate(ctx, cache.Request{
//	    Messages:    []cache.Message{{Role: cache.RoleUser, Content: "Hello"}},
//	    Temperature: cache.Temperature(0),
//	})
//	if err != nil {
//	    fmt.Println(apierr.UserMessage(err))
//	}
package completion
