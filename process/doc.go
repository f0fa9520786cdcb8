// Package process runs programs as isolated processes that talk to each
// other only through a rendezvous Coordinator.
//
// Start compiles program text on the caller's goroutine, so syntax errors
// come back immediately. The program then runs on its own goroutine
// (locked to its own OS thread by default) with a fresh interpreter and a
// Proc of its own. Runtime errors and panics are logged and never reach
// the caller or any other process.
package process
