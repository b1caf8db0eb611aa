package main

import "entitlement-manager/cmd"

func main() {
	cmd.Execute()
}
