// Package generation provides the interfaces and error classification for the
// external model services the pipeline drives. It abstracts the details of the
// scripting and image-generation APIs, allowing the orchestration core to run
// against any provider without coupling to a specific vendor SDK.
package generation
