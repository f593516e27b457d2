// Command fieldsync is the operator CLI for the offline mutation queue.
//
// It runs the daemon in the foreground (`fieldsync daemon`) and talks to a
// running daemon over its Unix socket to inspect status, list and enqueue
// mutations, trigger sync passes, and maintain dead letters. Every read
// command accepts --json for scripting.
package main
