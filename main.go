// The main package for the taxcrawler executable.
package main

import (
	"github.com/taxrag/tax-rag-crawler/cmd"
)

func main() {
	cmd.Execute()
}
