package main

import "zapstack-backend/cmd"

func main() {
	cmd.Execute()
}
