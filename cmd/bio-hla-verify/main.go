package main

import "github.com/grailbio/hlaverify/cmd/bio-hla-verify/cmd"

func main() {
	cmd.Run()
}
