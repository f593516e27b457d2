// Package daemonrun hosts the daemon process entry point shared by the
// fieldsync CLI and the fieldsyncd binary: logger setup, pid file, queue
// store, IPC server, and signal handling.
package daemonrun
