package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowKeyGuide writes short instructions for obtaining and storing a relay
// API key
func ShowKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "RELAY API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Occurrence pages are fetched through ScraperAPI.")
	fmt.Fprintln(w, "  1. Create an account at https://www.scraperapi.com")
	fmt.Fprintln(w, "  2. Copy the API key from the dashboard")
	fmt.Fprintln(w, "  3. Paste it at the prompt below")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The key can also be given with --api-key or %s.\n", APIKeyEnv)
	fmt.Fprintln(w)
}
