// Package health reports the state of the reliability stack.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy.
// BreakerChecker watches every circuit breaker in a registry and
// StoreChecker pings the response cache store. An Aggregator runs checkers
// concurrently under a timeout and folds them into an overall status.
//
//	agg := health.NewAggregator()
//	agg.Register("breakers", health.BreakerChecker(registry))
//	agg.Register("cache", health.StoreChecker("cache", store))
//
//	report := health.BuildReport(ctx, agg)
//	if report.Status == health.StatusUnhealthy {
//	    // page someone
//	}
package health
