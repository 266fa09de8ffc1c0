package spec

// SessionID identifies an execution session (UUIDv7 string).
type SessionID string
