// Package cli implements the photomagic command line: submit a background
// removal task, show its status, or wait for it to finish.
//
// Usage:
//
//	photomagic [-a url] [-t token] [-i seconds] [-w seconds] submit <fileId>
//	photomagic [...] status <taskId>
//	photomagic [...] wait <taskId>
//
// Without -t or PHOTOMAGIC_TOKEN the token is read from the terminal.
package cli
