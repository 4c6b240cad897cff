// Package cli implements seccli, the command-line client of the secledger
// server.
//
// Commands mirror the server operations:
//
//	show <user>
//	device add <user> <id> <name>
//	faceid enroll <user> [template] [--file path]
//	faceid remove <user>
//	buddy request <from> <to>
//	buddy respond <to> <from> <accept|decline>
//	2fa setup <user> [--qr file.png] [--ascii]
//	2fa verify <user> [code]
//	2fa disable <user>
//	2fa login <user> [code]
//	2fa check <assertion>
//	repl
//
// When a code is not given on the command line it is read from the terminal
// without echo. The repl command reads command lines from stdin and runs them
// through the same command tree until "exit" or EOF.
package cli
