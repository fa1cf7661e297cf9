// supper writes the weekly office seating plan from the shared out-of-office
// calendar.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("supper failed", "error", err)
		os.Exit(1)
	}
}
