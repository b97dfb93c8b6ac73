// Package logx is the bot's structured logger, a thin wrapper over zerolog.
//
// Console output is human readable with a short caller. The optional file sink
// writes JSON lines. The optional Telegram sink forwards records at or above a
// minimum level to the log chat, rate limited so a failure loop cannot flood it.
package logx
