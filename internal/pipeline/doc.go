// Package pipeline implements the concurrent image-generation core: it takes
// the ordered scene prompts of a story, renders and uploads an image per scene
// under a global concurrency cap and a provider rate budget, retries transient
// failures with backoff, and assembles an ordered result ledger in which every
// scene is either a URL or an explicit skipped sentinel.
//
// Tasks inside a batch run concurrently, each in its own goroutine; batches run
// sequentially with a pacing sleep between them. All provider and storage I/O
// happens on task goroutines, never on the coordinating goroutine, so one slow
// call can never serialize a batch. Per-task failures are contained as failed
// outcomes and never abort sibling tasks.
package pipeline
