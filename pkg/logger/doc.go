// Package logger builds log/slog loggers for gatekit services.
//
// New returns a JSON or text logger with static attributes and a handler
// decorator that copies request-scoped values (session id, user id) from the
// context into every record:
//
//	log := logger.New(logger.WithEnvironment(logger.EnvProduction, "gatekit"))
//	ctx = logger.WithSession(ctx, sessionID)
//	log.InfoContext(ctx, "identity resolved", logger.Tier(t), logger.GroupID(groupID))
//
// The attribute helpers (Tier, GroupID, AdKind, SlotState, ConsentState, Phase,
// RetryCount, Delay, Error) keep key names consistent across packages.
package logger
