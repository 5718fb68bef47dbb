// Package file provides filesystem adapters: a BotLoader over a directory of
// bot_<id>.json documents and a RunStore that archives finished runs as JSON.
package file
