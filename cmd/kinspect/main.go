package main

import "github.com/datazip-inc/kinspect"

func main() {
	kinspect.Execute()
}
