package main

import "github.com/dmitrijs2005/homedock/internal/ctl"

func main() {
	ctl.Execute()
}
