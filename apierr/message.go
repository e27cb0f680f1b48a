package apierr

import "errors"

// UserMessage maps a failure to a short message safe to show end users.
// Provider text and stack traces never leak through it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	e, ok := As(err)
	if !ok {
		return "Something went wrong. Please try again."
	}

	// Report the underlying cause of an exhausted retry loop.
	if e.Kind == KindMaxRetriesExceeded {
		if inner, ok := As(errors.Unwrap(e)); ok {
			e = inner
		}
	}

	switch e.Kind {
	case KindRateLimited:
		return "The AI service is busy. Please try again shortly."
	case KindAuthentication:
		return "The AI service is not configured correctly. Please contact support."
	case KindTimeout:
		return "The request took too long. Try a simpler request."
	case KindValidation:
		return "The request was invalid. Please check your input."
	case KindCircuitOpen, KindServiceUnavailable:
		return "The AI service is temporarily unavailable. Please try again later."
	case KindNetwork:
		return "Could not reach the AI service. Check your connection and try again."
	case KindResponseParsing:
		return "The AI service returned an unexpected response. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
