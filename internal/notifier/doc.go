// Package notifier delivers outbound chat messages asynchronously.
//
// Messages are enqueued into per-chat shards (chat ID modulo worker
// count), so messages to one chat are always sent in enqueue order
// while different chats proceed in parallel. Each worker applies a
// shared rate limit, bounded retries with backoff, and an optional
// in-memory dedup window.
package notifier
