// Package host serves HTTP traffic through the snippet engine.
//
// Every page request gets a scheduling pass before the upstream handler
// runs. HTML responses are buffered, body filters applied, inline
// [snippet id="…"] references expanded, and head and footer fragments
// inserted before </head> and </body>. A panic that escapes a request is
// turned into a fatal record and inspected, so a crashing snippet trips
// safe mode instead of taking the next request down with it.
//
// The JSON management API lives under a separate prefix and never runs
// snippets.
package host
