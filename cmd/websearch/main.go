// Command websearch crawls a bounded set of pages, builds a tf-idf index
// over them and answers queries from the command line or over HTTP.
package main

import "github.com/JakeFAU/realtime-search/cmd"

func main() {
	cmd.Execute()
}
