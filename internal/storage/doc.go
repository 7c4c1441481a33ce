// Package storage persists the search history log.
//
// The bot works fully without it; when enabled it records every admitted
// search and its final status so operators can see what the bot has been
// asked to do.
package storage
