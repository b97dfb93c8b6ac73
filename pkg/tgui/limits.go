package tgui

// MaxMessageRunes is Telegram's limit for one text message.
const MaxMessageRunes = 4096

// MaxCaptionRunes is Telegram's limit for a document caption.
const MaxCaptionRunes = 1024
