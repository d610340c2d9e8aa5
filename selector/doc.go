// Package selector chooses which loaded version of a backend serves
// unqualified requests, and parses backend version strings.
package selector
