package main

import "github.com/Ruscigno/astroscraper/cmd"

func main() {
	cmd.Execute()
}
