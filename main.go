package main

import "github.com/baicai99/ilovelie/cmd"

func main() {
	cmd.Execute()
}
