// Package tgui holds small helpers for Telegram text output: the message
// length limit, rune-safe truncation and line-aware chunking, and a Message
// value that sends itself as one or more chunks.
package tgui
