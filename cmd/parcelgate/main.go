package main

import "github.com/parcelgate/parcelgate/cmd/parcelgate/cmd"

func main() {
	cmd.Execute()
}
