// Package logx configures postbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// The zero Logger value is a safe no-op, so services can accept a Logger
// without nil checks.
package logx
