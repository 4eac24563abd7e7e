package main

import (
	"fmt"
	"os"

	"github.com/rustyguts/screenrelay/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was
// handled, so the caller can skip the normal serve path (§6 "version",
// "status" subcommands).
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("screenrelay %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	default:
		return false
	}
}

func cliStatus(dbPath string) bool {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	entries, err := st.RecentAuditEvents("", 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Database: %s\n", dbPath)
	if len(entries) == 0 {
		fmt.Println("Last audit event: none")
		return true
	}
	fmt.Printf("Last audit event: %s %s at %d\n", entries[0].Action, entries[0].UserID, entries[0].CreatedAt)
	return true
}
