// Command wbcache puts a write-back LRU cache in front of a backing store.
package main

import "github.com/sarchlab/wbcache/cmd"

func main() {
	cmd.Execute()
}
