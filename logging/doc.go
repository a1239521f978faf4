// Package logging is the small logging surface shared by autopm components.
//
// Components accept a Logger through their functional options and default to
// NoOpLogger. Production wiring builds a slog backed Logger from the
// environment:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "json"})
//	ctrl, err := lifecycle.New(tracker, router, evaluator, func(o *lifecycle.Options) {
//		o.AutomationUserID = botID
//		o.Logger = logging.With(logger, "component", "lifecycle")
//	})
//
// Arguments follow slog's alternating key/value convention.
package logging
