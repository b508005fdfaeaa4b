// Package main provides the entry point for the tagscope CLI.
//
// tagscope loads a web page in a headless browser, accepts its cookie
// banner, and reports which tag managers, ad pixels and analytics platforms
// it runs, scored for performance, privacy, tracking and compliance.
//
// Usage:
//
//	tagscope serve
//	tagscope scan <url>
//	tagscope history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
