// ABOUTME: Help display for the kicksight CLI with usage patterns and grouped flags.
// ABOUTME: Provides printHelp used by the flag set's Usage hook.
package main

import (
	"fmt"
	"io"
)

// printHelp writes a formatted help message to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "kicksight %s - conversational analytics chat client\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  kicksight                     Start the chat client")
	fmt.Fprintln(w, "  kicksight -backend <url>      Chat against a specific supervisor backend")
	fmt.Fprintln(w, "  kicksight -serve              Start the scripted replay supervisor")
	fmt.Fprintln(w, "  kicksight -version            Print version and exit")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chat Flags:")
	fmt.Fprintln(w, "  -backend <url>    Supervisor base URL (default: http://127.0.0.1:8899, env: KICKSIGHT_BACKEND)")
	fmt.Fprintln(w, "  -db <path>        Conversation database path (default: $XDG_DATA_HOME/kicksight/conversations.db)")
	fmt.Fprintln(w, "  -timeout <dur>    Stream inactivity timeout, e.g. 90s (default: 2m)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server Environment:")
	fmt.Fprintln(w, "  KICKSIGHT_BIND           Listen address (default: 127.0.0.1:8899)")
	fmt.Fprintln(w, "  KICKSIGHT_SCENARIOS      Directory of YAML replay scenarios")
	fmt.Fprintln(w, "  KICKSIGHT_ALLOW_REMOTE   Allow non-loopback binds (requires KICKSIGHT_AUTH_TOKEN)")
	fmt.Fprintln(w, "  KICKSIGHT_AUTH_TOKEN     Bearer token required on every request")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Keys in chat:")
	fmt.Fprintln(w, "  enter      Send the question")
	fmt.Fprintln(w, "  ctrl+n     New conversation (abandons a running analysis)")
	fmt.Fprintln(w, "  ctrl+x     Delete the current conversation")
	fmt.Fprintln(w, "  tab        Switch conversations")
	fmt.Fprintln(w, "  ctrl+o     Open the latest dashboard embed")
	fmt.Fprintln(w, "  ctrl+b     Open the visible dashboard in the browser")
	fmt.Fprintln(w, "  ctrl+c     Quit")
}
